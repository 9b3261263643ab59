package runner

// Action names: the values of "action:" in YAML test files.
const (
	ActionGetSingleSensor  = "get_single_sensor"
	ActionOn               = "on"
	ActionOnce             = "once"
	ActionOff              = "off"
	ActionWait             = "wait"
	ActionEmit             = "emit"
	ActionSettle           = "settle"
	ActionGrantPermission  = "grant_permission"
	ActionRevokePermission = "revoke_permission"
	ActionInjectFault      = "inject_fault"
	ActionFailNextEnable   = "fail_next_enable"
	ActionSuspend          = "suspend"
	ActionResume           = "resume"
	ActionActiveInfo       = "active_info"
	ActionWatchActiveInfo  = "watch_active_info"
	ActionResetSensors     = "reset_sensors"
)

// Step parameter keys.
const (
	ParamSensor     = "sensor"
	ParamCallback   = "callback"
	ParamInvocable  = "invocable"
	ParamInterval   = "interval"
	ParamOptions    = "options"
	ParamPermission = "permission"
	ParamCount      = "count"
	ParamMessage    = "message"
)

// Output keys set by the handlers.
const (
	KeyErrorCode         = "error_code"
	KeyErrorMessage      = "error_message"
	KeyError             = "error"
	KeySubscriptionID    = "subscription_id"
	KeySensorName        = "name"
	KeySensorID          = "sensor_id"
	KeyPermission        = "permission"
	KeyFields            = "fields"
	KeyMinSamplePeriod   = "min_sample_period_ns"
	KeyMaxSamplePeriod   = "max_sample_period_ns"
	KeyEmitted           = "emitted"
	KeyInjected          = "injected"
	KeyActiveSensors     = "active_sensors"
	KeyActiveSensorCount = "active_sensor_count"
	KeyValue             = "value"
)

// Checker names that are specific to the sensor runner.
const (
	CheckerErrorCode         = "error_code"
	CheckerErrorMessage      = "error_message"
	CheckerCallbackCount     = "callback_count"
	CheckerMinCallbackCount  = "min_callback_count"
	CheckerMaxCallbackCount  = "max_callback_count"
	CheckerFieldNumeric      = "field_numeric"
	CheckerAsyncErrorCode    = "async_error_code"
	CheckerActiveSensorCount = "active_sensor_count"
	CheckerActiveEdges       = "active_edges"
)

// Keys in engine.ExecutionState.Custom.
const (
	customSession      = "session"
	customLastError    = "last_error"
	customLastCallback = "last_callback"
)

// DefaultCallback names the callback used when a step does not name one.
const DefaultCallback = "cb"
