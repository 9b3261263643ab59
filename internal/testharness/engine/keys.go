package engine

// Infrastructure keys used internally by the engine.
const (
	InternalStepOutput = "__step_output"
)

// Output keys read by the generic checkers.
const (
	KeyValue = "value"
	KeyError = "error"
)

// Checker registration names: the string values that appear in YAML test
// files and are used as map keys in Engine.checkers.
const (
	CheckerNameDefault              = "default"
	CheckerNameValueGreaterThan     = "value_greater_than"
	CheckerNameValueLessThan        = "value_less_than"
	CheckerNameValueInRange         = "value_in_range"
	CheckerNameContains             = "contains"
	CheckerNameSaveAs               = "save_as"
	CheckerNameErrorMessageContains = "error_message_contains"
	CheckerNameNoError              = "no_error"
	CheckerNameDurationUnder        = "duration_under"
)
