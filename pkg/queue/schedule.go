package queue

import (
	"fmt"
	"time"
)

// Schedule determines when a periodic task should next run.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		from.Hour(), s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	// Days until the target weekday, modulo handles week wraparound.
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(
		next.Year(), next.Month(), next.Day(),
		s.hour, s.minute, 0, 0, next.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// EveryInterval creates a schedule that runs at a fixed interval.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// EveryMinutes creates a schedule that runs every n minutes.
func EveryMinutes(n int) Schedule {
	return intervalSchedule{every: time.Duration(n) * time.Minute}
}

// HourlyAt creates a schedule that runs every hour at the given minute.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute}
}

// DailyAt creates a schedule that runs daily at the given time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn creates a schedule that runs weekly on the given day and time.
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}
