// Package period разбирает даты подписок и вычисляет срок их действия.
package period

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout формат дат во входящих запросах: день-месяц-год.
const DateLayout = "02-01-2006"

// ErrEmptyPeriod дата окончания не позже даты начала.
var ErrEmptyPeriod = errors.New("end date must be after start date")

// ParseDate разбирает дату в формате DateLayout в полночь UTC.
func ParseDate(s string) (time.Time, error) {
	const op = "period.ParseDate"

	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// EndAfterMonths возвращает момент окончания подписки длиной months месяцев.
// Если в последнем месяце нет дня начала, подписка заканчивается в последний день месяца.
func EndAfterMonths(start time.Time, months int) time.Time {
	end := start.AddDate(0, months, 0)
	// AddDate нормализует 31 января + 1 месяц в 3 марта
	if end.Day() != start.Day() {
		end = end.AddDate(0, 0, -end.Day())
	}
	return end
}

// Resolve вычисляет период подписки по дате начала и либо дате окончания,
// либо количеству месяцев. Дата окончания имеет приоритет и входит в период:
// подписка действует до полуночи UTC следующего за ней дня.
func Resolve(startDate, endDate string, months int) (time.Time, time.Time, error) {
	const op = "period.Resolve"

	start, err := ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	var end time.Time
	switch {
	case endDate != "":
		if end, err = ParseDate(endDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = end.AddDate(0, 0, 1)
	case months > 0:
		end = EndAfterMonths(start, months)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%s: end_date or months is required", op)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", op, ErrEmptyPeriod)
	}
	return start, end, nil
}
