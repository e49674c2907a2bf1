package featureflag

type Flag string

const (
	// FlagStrictInserts makes the server answer an element_add whose
	// footprint falls outside the index bound with an error_response instead
	// of silently dropping the element.
	FlagStrictInserts Flag = "STRICT_INSERTS"

	// FlagDisableStats disables the index_stats operation.
	FlagDisableStats Flag = "DISABLE_STATS"

	// FlagDisableClear disables the remote index_clear operation.
	FlagDisableClear Flag = "DISABLE_CLEAR"
)
