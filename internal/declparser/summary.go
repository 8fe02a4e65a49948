package declparser

// Summary is one lightweight declaration entry from the list payload.
// It lives only long enough to be merged into the store.
type Summary struct {
	GUID       string
	MRNCustoms string
	MRNDate    string
	MRNNumber  string
	StatusCode string
	Registered string
	Sender     string
	Receiver   string
	Declarant  string
	Transport  string

	// Fields holds every flat tag of the source item; it becomes the
	// list-phase portion of the persisted payload envelope.
	Fields map[string]string
}

// MRN joins the three registration-number parts.
func (s *Summary) MRN() string {
	if s.MRNCustoms == "" && s.MRNDate == "" && s.MRNNumber == "" {
		return ""
	}
	return s.MRNCustoms + "/" + s.MRNDate + "/" + s.MRNNumber
}
