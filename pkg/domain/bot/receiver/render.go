package receiver

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/anthonyagughasi/haircut-website/pkg/domain/booking"
	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
)

// view is what a renderer sees: the wizard plus session-only UI state.
type view struct {
	w        *booking.Wizard
	armed    string
	greeting string
	today    time.Time
	days     int
}

type stepView func(v view) (string, tgbotapi.InlineKeyboardMarkup)

var views = map[booking.Step]stepView{
	booking.StepService:    serviceView,
	booking.StepStaff:      staffView,
	booking.StepDateTime:   dateTimeView,
	booking.StepDetails:    detailsView,
	booking.StepSubmitting: submittingView,
	booking.StepCompleted:  completedView,
}

func render(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	fn, ok := views[v.w.Step()]
	if !ok {
		return "…", emptyKeyboard()
	}
	return fn(v)
}

func esc(s string) string { return html.EscapeString(s) }

func header(n int, title string) string {
	return fmt.Sprintf("<b>Step %d of 4 · %s</b>\n\n", n, title)
}

func emptyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func retryButton() tgbotapi.InlineKeyboardButton {
	return button("🔄 Retry", CbRetry)
}

func mark(selected bool, text string) string {
	if selected {
		return "✅ " + text
	}
	return text
}

func navRow(back bool, next string) []tgbotapi.InlineKeyboardButton {
	row := tgbotapi.NewInlineKeyboardRow()
	if back {
		row = append(row, button("⬅️ Back", CbBack))
	}
	if next != "" {
		row = append(row, button(next, CbNext))
	}
	return row
}

func formatPrice(p float64) string {
	if p == float64(int64(p)) {
		return "$" + strconv.FormatInt(int64(p), 10)
	}
	return fmt.Sprintf("$%.2f", p)
}

func humanDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("Mon, Jan 2")
}

func staffLabel(c booking.StaffChoice) string {
	if m := c.Member(); m != nil {
		return m.Name
	}
	return "No preference"
}

// ---------- Rendering per step ----------

func serviceView(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	if v.greeting != "" {
		fmt.Fprintf(&b, "Hi %s! Let's book your visit.\n\n", esc(v.greeting))
	}
	b.WriteString(header(1, "Service"))

	if v.w.Loading(booking.RoleServices) {
		b.WriteString("Loading services…")
		return b.String(), emptyKeyboard()
	}
	services := v.w.Services()
	if v.w.FetchFailed(booking.RoleServices) {
		b.WriteString("⚠️ Couldn't load services. Please try again.")
		return b.String(), tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(retryButton()))
	}
	if len(services) == 0 {
		b.WriteString("No services are available right now. Please try again later.")
		return b.String(), tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button("🔄 Retry", CbBook)))
	}
	b.WriteString("Choose a service:")

	selected := v.w.Selection().Service
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, s := range services {
		label := fmt.Sprintf("%s · %s · %d min", s.Name, formatPrice(s.Price), s.Duration)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(mark(selected != nil && selected.ID == s.ID, label), PSvc+strconv.FormatInt(s.ID, 10)),
		))
	}
	rows = append(rows, navRow(false, "Continue ➡️"))
	return b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func staffView(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	text := header(2, "Barber")
	if v.w.Loading(booking.RoleStaff) {
		return text + "Loading barbers…", tgbotapi.NewInlineKeyboardMarkup(navRow(true, ""))
	}
	if v.w.FetchFailed(booking.RoleStaff) {
		text += "⚠️ Couldn't load the barbers. Retry, or continue with no preference."
	} else {
		text += "Who would you like? Skip to let us pick."
	}

	choice := v.w.Selection().Staff
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(button(mark(choice.NoPreference(), "No preference"), PM+AnyStaff)),
	}
	if v.w.FetchFailed(booking.RoleStaff) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(retryButton()))
	}
	for _, m := range v.w.Staff() {
		label := m.Name
		if m.Description != "" {
			label += " · " + m.Description
		}
		chosen := choice.Member() != nil && choice.Member().ID == m.ID
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(mark(chosen, label), PM+strconv.FormatInt(m.ID, 10))))
	}
	rows = append(rows, navRow(true, "Continue ➡️"))
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dateTimeView(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	sel := v.w.Selection()
	var b strings.Builder
	b.WriteString(header(3, "Date & time"))

	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, dateRows(v.today, v.days, sel.Date)...)

	switch {
	case sel.Date == "":
		b.WriteString("Pick a date.")
	case v.w.Loading(booking.RoleSlots):
		fmt.Fprintf(&b, "%s\nLoading times…", humanDate(sel.Date))
	case v.w.FetchFailed(booking.RoleSlots):
		fmt.Fprintf(&b, "%s\n⚠️ Couldn't load times for this day. Please try again.", humanDate(sel.Date))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(retryButton()))
	case len(v.w.Slots()) == 0:
		fmt.Fprintf(&b, "%s\nNo times left on this day. Try another date.", humanDate(sel.Date))
	default:
		fmt.Fprintf(&b, "%s\nPick a time (✖ = taken):", humanDate(sel.Date))
		rows = append(rows, slotRows(v.w.Slots(), sel.Time)...)
	}
	rows = append(rows, navRow(true, "Continue ➡️"))
	return b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dateRows(today time.Time, days int, selected string) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := tgbotapi.NewInlineKeyboardRow()
	for i := 0; i < days; i++ {
		iso := today.AddDate(0, 0, i).Format("2006-01-02")
		label := today.AddDate(0, 0, i).Format("Mon 2")
		row = append(row, button(mark(iso == selected, label), PD+iso))
		if len(row) == 4 {
			rows = append(rows, row)
			row = tgbotapi.NewInlineKeyboardRow()
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// slotRows lays the grid out four per row. Taken slots stay visible but inert.
func slotRows(slots []model.TimeSlot, selected string) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := tgbotapi.NewInlineKeyboardRow()
	for _, s := range slots {
		btn := button("✖ "+s.Time, CbNoop)
		if s.Available {
			btn = button(mark(s.Time == selected, s.Time), PT+s.Time)
		}
		row = append(row, btn)
		if len(row) == 4 {
			rows = append(rows, row)
			row = tgbotapi.NewInlineKeyboardRow()
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func detailsView(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	sel := v.w.Selection()
	c := sel.Customer
	var b strings.Builder
	if e := v.w.Error(); e != "" {
		fmt.Fprintf(&b, "⚠️ <b>%s</b>\n\n", esc(e))
	}
	b.WriteString(header(4, "Your details"))
	fmt.Fprintf(&b, "%s with %s\n%s at %s\n\n",
		esc(sel.Service.Name), esc(staffLabel(sel.Staff)), humanDate(sel.Date), sel.Time)

	if v.armed != "" {
		b.WriteString("✏️ " + fieldPrompts[v.armed])
	} else if missing := booking.MissingFields(c, v.w.RequireEmail()); len(missing) > 0 {
		b.WriteString("Still needed: " + strings.Join(missing, ", "))
	} else {
		b.WriteString("All set. Tap Confirm to book.")
	}

	emailLabel := "Email"
	if !v.w.RequireEmail() {
		emailLabel = "Email (optional)"
	}
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(button(fieldLabel("Name", c.Name, v.armed == FieldName), PF+FieldName)),
		tgbotapi.NewInlineKeyboardRow(button(fieldLabel("Phone", c.Phone, v.armed == FieldPhone), PF+FieldPhone)),
		tgbotapi.NewInlineKeyboardRow(button(fieldLabel(emailLabel, c.Email, v.armed == FieldEmail), PF+FieldEmail)),
		tgbotapi.NewInlineKeyboardRow(button(fieldLabel("Notes (optional)", c.Notes, v.armed == FieldNotes), PF+FieldNotes)),
	}
	if v.w.Error() != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("✖ Dismiss", CbDismiss)))
	}
	nav := navRow(true, "")
	nav = append(nav, button("✅ Confirm booking", CbOk))
	rows = append(rows, nav)
	return b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func fieldLabel(name, value string, armed bool) string {
	switch {
	case armed:
		return "✏️ " + name + "…"
	case value == "":
		return name + ": —"
	}
	return name + ": " + value
}

func submittingView(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	return "⏳ Booking your appointment…", emptyKeyboard()
}

func completedView(v view) (string, tgbotapi.InlineKeyboardMarkup) {
	out := v.w.Confirmation()
	var b strings.Builder
	b.WriteString("✅ <b>Booking confirmed!</b>\n\n")
	if out != nil {
		fmt.Fprintf(&b, "Service: %s\n", esc(out.ServiceName))
		staff := out.StaffName
		if staff == "" {
			staff = staffLabel(v.w.Selection().Staff)
		}
		fmt.Fprintf(&b, "Barber: %s\n", esc(staff))
		fmt.Fprintf(&b, "When: %s at %s\n", humanDate(out.Date), out.Time)
		if out.ConfirmationID != "" {
			fmt.Fprintf(&b, "Reference: <code>%s</code>\n", esc(out.ConfirmationID))
		}
	}
	b.WriteString("\nSee you soon!")
	return b.String(), tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("💈 Book another", CbBook)),
	)
}
