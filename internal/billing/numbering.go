package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const maxSequence = 999

// ErrSequenceExhausted is returned when a prefix would need more than 999
// documents in a single month. The width of the sequence field is part of the
// published number format, so exhaustion is a hard error instead of a silent
// widening.
var ErrSequenceExhausted = errors.New("document number sequence exhausted for period")

// PeriodKey derives the numbering period from a date: year plus zero-padded
// month, e.g. "202506". Each period restarts its sequence at 001.
func PeriodKey(t time.Time) string {
	return t.Format("200601")
}

// NextNumber produces the next number in a period's sequence. last is the
// greatest existing number matching "prefix-periodKey-", or empty when the
// period has no documents yet.
func NextNumber(prefix, periodKey, last string) (string, error) {
	seq := 1
	if last != "" {
		if len(last) < 3 {
			return "", fmt.Errorf("malformed document number %q", last)
		}
		n, err := strconv.Atoi(last[len(last)-3:])
		if err != nil {
			return "", fmt.Errorf("malformed document number %q: %w", last, err)
		}
		seq = n + 1
	}
	if seq > maxSequence {
		return "", fmt.Errorf("%w: %s-%s", ErrSequenceExhausted, prefix, periodKey)
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, periodKey, seq), nil
}

// Allocate reserves the next number for model (an *Invoice or *Quote) within
// the caller's transaction. On postgres the (prefix, period) pair is
// serialized with an advisory lock held until the transaction ends, so two
// concurrent creations cannot read the same last number. The unique index on
// number remains the backstop: callers retry allocation when the insert
// reports gorm.ErrDuplicatedKey.
func Allocate(tx *gorm.DB, model any, prefix string, now time.Time) (string, error) {
	period := PeriodKey(now)
	if tx.Dialector.Name() == "postgres" {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix+"-"+period).Error; err != nil {
			return "", err
		}
	}
	var numbers []string
	err := tx.Model(model).
		Where("number LIKE ?", prefix+"-"+period+"-%").
		Order("number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return "", err
	}
	last := ""
	if len(numbers) > 0 {
		last = numbers[0]
	}
	return NextNumber(prefix, period, last)
}

// SplitNumber breaks a document number into prefix, period and sequence parts.
// The prefix may itself contain dashes, so the split runs from the right.
func SplitNumber(number string) (prefix, period, seq string, err error) {
	i := strings.LastIndex(number, "-")
	if i < 0 {
		return "", "", "", fmt.Errorf("malformed document number %q", number)
	}
	seq = number[i+1:]
	rest := number[:i]
	j := strings.LastIndex(rest, "-")
	if j < 0 || len(seq) != 3 {
		return "", "", "", fmt.Errorf("malformed document number %q", number)
	}
	return rest[:j], rest[j+1:], seq, nil
}
