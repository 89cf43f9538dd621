package domain

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	viPrinter  = message.NewPrinter(language.Vietnamese)
	viLocation = loadVietnamLocation()
)

func loadVietnamLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// FormatNumber groups thousands the Vietnamese way: 10000 -> "10.000".
func FormatNumber(n int) string {
	return viPrinter.Sprintf("%d", n)
}

// FormatVND renders a currency amount, e.g. "10.000đ".
func FormatVND(amount int) string {
	return FormatNumber(amount) + "đ"
}

// FormatPoints renders a point amount, e.g. "1.000 điểm".
func FormatPoints(points int) string {
	return FormatNumber(points) + " điểm"
}

// FormatClock renders a timestamp in Vietnam local time.
func FormatClock(t time.Time) string {
	return t.In(viLocation).Format("15:04 02/01/2006")
}
