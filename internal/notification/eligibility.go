package notification

import "time"

// ShouldNotify reports whether an expiry notification fires today for the
// given setting. It is true only on an exact match: the target date must be
// precisely cycle days after the reference date. A gifticon therefore warns
// each user once per configured cycle, not on every following day.
//
// Pure predicate; wall-clock components of both dates are ignored.
func ShouldNotify(setting *NotificationSetting, referenceDate, targetDate time.Time) bool {
	if setting == nil || !setting.ExpirationCycle.Valid() {
		return false
	}
	due := DateOnly(referenceDate).AddDate(0, 0, setting.ExpirationCycle.Days())
	return DateOnly(targetDate).Equal(due)
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CandidateDates returns today plus each configurable cycle, the only expiry
// dates that can possibly fire today.
func CandidateDates(today time.Time) []time.Time {
	base := DateOnly(today)
	dates := make([]time.Time, 0, len(ExpirationCycles))
	for _, c := range ExpirationCycles {
		dates = append(dates, base.AddDate(0, 0, c.Days()))
	}
	return dates
}
