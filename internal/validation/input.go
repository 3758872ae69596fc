package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

// Константы валидации
const (
	MaxListingTitleLength       = 100
	MaxListingDescriptionLength = 1000
	MaxRequirementsLength       = 1000
	MaxDeliveryNotesLength      = 1000
	MaxReviewLength             = 500
	MinDisputeReasonLength      = 10
	MaxDisputeReasonLength      = 500
	MaxDisputeDescriptionLength = 1000
	MaxResolutionLength         = 500
	MaxMilestoneTitleLength     = 100
	MaxMilestoneDescription     = 500
	MaxRejectionReasonLength    = 500
	MaxRefs                     = 5
	MaxRefLength                = 200
	MinRating                   = 1
	MaxRating                   = 5
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Validation("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return apperror.Validation("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Validation("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateRefs проверяет список ссылок на файлы: количество и длину каждой.
func ValidateRefs(fieldName string, refs []string) error {
	if len(refs) > MaxRefs {
		return apperror.Validation("%s: не более %d ссылок", fieldName, MaxRefs)
	}
	for _, ref := range refs {
		if err := ValidateNonEmpty(fieldName, ref); err != nil {
			return err
		}
		if err := ValidateLength(fieldName, ref, 0, MaxRefLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRating проверяет оценку 1..5.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return apperror.Validation("оценка должна быть от %d до %d", MinRating, MaxRating)
	}
	return nil
}
