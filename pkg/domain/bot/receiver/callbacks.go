package receiver

import "strings"

// ---------- Callback keys ----------

const (
	CbStart   = "start"
	CbBook    = "book"
	CbBack    = "back"
	CbNext    = "next"
	CbOk      = "confirm"
	CbDismiss = "dismiss"
	CbNoop    = "noop"
	CbRetry   = "retry"

	PSvc = "svc:" // svc:2
	PM   = "m:"   // m:3 or m:any
	PD   = "d:"   // d:2025-08-20
	PT   = "t:"   // t:10:30
	PF   = "f:"   // f:phone

	AnyStaff = "any"
)

// Detail fields a user can fill by text after pressing the matching button.
const (
	FieldName  = "name"
	FieldPhone = "phone"
	FieldEmail = "email"
	FieldNotes = "notes"
)

var fieldPrompts = map[string]string{
	FieldName:  "Send your full name as a message.",
	FieldPhone: "Send your phone number as a message.",
	FieldEmail: "Send your email address as a message.",
	FieldNotes: "Send any notes for your barber as a message.",
}

func Is(k, prefix string) (string, bool) {
	if strings.HasPrefix(k, prefix) {
		return strings.TrimPrefix(k, prefix), true
	}
	return "", false
}
