package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BlankType enumerates the physical tag shapes.
type BlankType string

const (
	TypeBone   BlankType = "BONE"
	TypeRing   BlankType = "RING"
	TypeRound  BlankType = "ROUND"
	TypeHeart  BlankType = "HEART"
	TypeCloud  BlankType = "CLOUD"
	TypeFlower BlankType = "FLOWER"
)

// BlankColor enumerates metal colors.
type BlankColor string

const (
	ColorGold   BlankColor = "GLD"
	ColorSilver BlankColor = "SIL"
)

// SKU describes one blank variant together with its control levels.
type SKU struct {
	Code        string     `json:"code"`
	Type        BlankType  `json:"type"`
	SizeMM      int        `json:"size_mm"`
	Color       BlankColor `json:"color"`
	Name        string     `json:"name"`
	MinLevel    int        `json:"min_level"`
	TargetLevel int        `json:"target_level"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DisplayName renders the operator-facing label.
func (s SKU) DisplayName() string {
	return fmt.Sprintf("%s %dмм %s", s.Name, s.SizeMM, s.Color)
}

// ErrNotFound indicates an unknown SKU code.
var ErrNotFound = errors.New("catalog: sku not found")

// ErrCodeTaken indicates a duplicate SKU code on create.
var ErrCodeTaken = errors.New("catalog: sku code already exists")

// ErrLevelBounds indicates control levels violating target > min > 0.
var ErrLevelBounds = errors.New("catalog: target level must exceed min level, both positive")

// ErrInvalidCode indicates a malformed SKU code.
var ErrInvalidCode = errors.New("catalog: invalid sku code")

var validTypes = map[BlankType]bool{
	TypeBone: true, TypeRing: true, TypeRound: true,
	TypeHeart: true, TypeCloud: true, TypeFlower: true,
}

var validColors = map[BlankColor]bool{
	ColorGold: true, ColorSilver: true,
}

// BuildCode composes the canonical SKU code, e.g. BLK-BONE-25-GLD.
func BuildCode(t BlankType, sizeMM int, c BlankColor) string {
	return fmt.Sprintf("BLK-%s-%d-%s", t, sizeMM, c)
}

// ParseCode splits a SKU code back into its parts.
func ParseCode(code string) (BlankType, int, BlankColor, error) {
	parts := strings.Split(strings.TrimSpace(code), "-")
	if len(parts) != 4 || parts[0] != "BLK" {
		return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	t := BlankType(parts[1])
	if !validTypes[t] {
		return "", 0, "", fmt.Errorf("%w: unknown type %q", ErrInvalidCode, parts[1])
	}
	size, err := strconv.Atoi(parts[2])
	if err != nil || size <= 0 {
		return "", 0, "", fmt.Errorf("%w: bad size %q", ErrInvalidCode, parts[2])
	}
	c := BlankColor(parts[3])
	if !validColors[c] {
		return "", 0, "", fmt.Errorf("%w: unknown color %q", ErrInvalidCode, parts[3])
	}
	return t, size, c, nil
}

// ValidateLevels enforces the control-level invariant.
func ValidateLevels(minLevel, targetLevel int) error {
	if minLevel <= 0 || targetLevel <= minLevel {
		return ErrLevelBounds
	}
	return nil
}
