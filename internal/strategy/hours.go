package strategy

import "time"

// TradingHours gates ticks to the exchange's futures sessions.
type TradingHours struct {
	DayOpen    int // minutes from midnight
	DayClose   int
	NightOpen  int
	NightClose int // next-day close, minutes from midnight
}

// TaifexHours covers the index futures day session 08:45-13:45 and night
// session 15:00-05:00.
func TaifexHours() TradingHours {
	return TradingHours{
		DayOpen:    8*60 + 45,
		DayClose:   13*60 + 45,
		NightOpen:  15 * 60,
		NightClose: 5 * 60,
	}
}

// Contains reports whether ts falls inside a trading session.
func (h TradingHours) Contains(ts time.Time) bool {
	m := ts.Hour()*60 + ts.Minute()
	if m >= h.DayOpen && m <= h.DayClose {
		return true
	}
	// Night session wraps midnight.
	return m >= h.NightOpen || m <= h.NightClose
}
