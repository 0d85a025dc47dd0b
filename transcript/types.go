// Package transcript defines the message model exchanged between the popup
// controller and the acquisition engine: one ExtractionRequest in, exactly one
// Result out.
package transcript

// ActionExtract is the only action the engine recognises.
const ActionExtract = "extract_transcript"

// Request is the ExtractionRequest sent by the popup for one click.
type Request struct {
	Action string `json:"action"`
}

// ExtractRequest returns the canonical extraction request.
func ExtractRequest() Request {
	return Request{Action: ActionExtract}
}

// Result is the outcome of one acquisition. Exactly one of Transcript or
// Failure is meaningful: Failure == nil means success.
type Result struct {
	Transcript string
	Failure    *Failure
}

// Success wraps extracted text.
func Success(text string) Result {
	return Result{Transcript: text}
}

// Fail wraps a failure. A nil failure is replaced by a generic one so the
// result never ends up with neither variant set.
func Fail(f *Failure) Result {
	if f == nil {
		f = &Failure{Kind: KindPage, Message: "unknown failure"}
	}
	return Result{Failure: f}
}

// OK reports whether the result carries a transcript.
func (r Result) OK() bool { return r.Failure == nil }

// Response returns the wire form of the result.
func (r Result) Response() Response {
	if r.Failure != nil {
		return Response{Error: r.Failure.Message}
	}
	text := r.Transcript
	return Response{Transcript: &text}
}

// Response is the wire reply: {"transcript": "..."} or {"error": "..."}.
// Transcript is a pointer so that a missing field is distinguishable from an
// empty string.
type Response struct {
	Transcript *string `json:"transcript,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Text returns the transcript and whether the response counts as a success.
// Absence of the transcript field is a failure regardless of Error, and so is
// an empty transcript.
func (r *Response) Text() (string, bool) {
	if r == nil || r.Transcript == nil || *r.Transcript == "" {
		return "", false
	}
	return *r.Transcript, true
}
