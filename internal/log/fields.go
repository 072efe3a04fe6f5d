package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldSessionID  = "session_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldSeq        = "seq"
	FieldLatestSeq  = "latest_seq"
	FieldRecords    = "records"
	FieldCategory   = "category"
	FieldStartDate  = "start_date"
	FieldEndDate    = "end_date"
	FieldSmoothing  = "smoothing"
	FieldRadius     = "avg_days"
	FieldFile       = "file"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentAPI        = "api"
	ComponentFilterSync = "filtersync"
	ComponentAPIClient  = "apiclient"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentImporter   = "importer"
	ComponentCache      = "cache"
	ComponentRateLimit  = "rate_limit"
	ComponentTemplate   = "template"
)

// Operations defines standard operation names
const (
	OpLoadCategories   = "load_categories"
	OpLoadTransactions = "load_transactions"
	OpImport           = "import"
	OpPublish          = "publish"
	OpConsume          = "consume"
	OpRender           = "render"
	OpShutdown         = "shutdown"
	OpStartup          = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithFilter adds the filter fields of a transactions query.
func (f LogFields) WithFilter(category, start, end, smoothing string, radius int) LogFields {
	f[FieldCategory] = category
	f[FieldStartDate] = start
	f[FieldEndDate] = end
	f[FieldSmoothing] = smoothing
	f[FieldRadius] = radius
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
