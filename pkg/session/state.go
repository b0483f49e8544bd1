package session

// Status is the coarse state of a capture session.
type Status string

// Session states.
const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusCapturing Status = "capturing"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Status line texts shown to the user.
const (
	LineUploading = "Uploading"
	LineDone      = "Done"

	prefixCamera = "Camera error: "
	prefixUpload = "Upload/OCR error: "
	prefixImage  = "Image error: "
)

// Snapshot is a copy of the session's displayable state.
type Snapshot struct {
	Status Status `json:"status"`

	// Streaming is true while a live camera stream is held. It can stay true
	// through uploading/done/error, so another frame can be captured.
	Streaming bool `json:"streaming"`

	// PreviewURI points at the image most recently sent, "" when cleared.
	PreviewURI string `json:"preview_uri"`

	// ResultText is set only in StatusDone.
	ResultText *string `json:"result_text"`

	// ErrorMessage is set only in StatusError.
	ErrorMessage *string `json:"error_message"`

	// StatusLine is the plain-text outcome of the most recent action.
	StatusLine string `json:"status_line"`

	// Attempt increases with every user action that resets the display.
	Attempt uint64 `json:"attempt"`
}

// Result returns the recognized text, or "" outside StatusDone.
func (s Snapshot) Result() string {
	if s.ResultText == nil {
		return ""
	}
	return *s.ResultText
}

// Err returns the error message, or "" outside StatusError.
func (s Snapshot) Err() string {
	if s.ErrorMessage == nil {
		return ""
	}
	return *s.ErrorMessage
}

func (s *Snapshot) clearOutcome() {
	s.ResultText = nil
	s.ErrorMessage = nil
	s.StatusLine = ""
}

func (s *Snapshot) fail(prefix string, err error) {
	msg := prefix + err.Error()
	s.Status = StatusError
	s.ResultText = nil
	s.ErrorMessage = &msg
	s.StatusLine = msg
}

func (s *Snapshot) succeed(text string) {
	s.Status = StatusDone
	s.ResultText = &text
	s.ErrorMessage = nil
	s.StatusLine = LineDone
}

// resting is the state to fall back to when an attempt ends without outcome.
func (s *Snapshot) resting() Status {
	if s.Streaming {
		return StatusStreaming
	}
	return StatusIdle
}
