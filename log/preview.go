package log

// defaultMaxLoggedStrLen caps preview length so unexpected payloads (a full
// directory listing, an HTML error page) do not flood the logs.
const defaultMaxLoggedStrLen = 100

// Preview returns a log-safe preview of str, truncated with an ellipsis when
// it exceeds the effective maximum length.
//
// maxLen is optional and defaults to defaultMaxLoggedStrLen.
func Preview(str string, maxLen ...int) string {
	l := defaultMaxLoggedStrLen
	if len(maxLen) > 0 {
		l = maxLen[0]
	}
	if len(str) <= l {
		return str
	}
	if l <= 3 {
		return str[:l]
	}
	return str[:l-3] + "..."
}
