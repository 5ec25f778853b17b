package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	skus map[string]SKU
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{skus: make(map[string]SKU)}
}

func (r *memoryRepo) List(ctx context.Context, onlyActive bool) ([]SKU, error) {
	var out []SKU
	for _, s := range r.skus {
		if onlyActive && !s.Active {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, code string) (SKU, error) {
	if s, ok := r.skus[code]; ok {
		return s, nil
	}
	return SKU{}, ErrNotFound
}

func (r *memoryRepo) Insert(ctx context.Context, s SKU) error {
	if _, ok := r.skus[s.Code]; ok {
		return ErrCodeTaken
	}
	r.skus[s.Code] = s
	return nil
}

func (r *memoryRepo) UpdateLevels(ctx context.Context, code string, minLevel, targetLevel int) error {
	s, ok := r.skus[code]
	if !ok {
		return ErrNotFound
	}
	s.MinLevel = minLevel
	s.TargetLevel = targetLevel
	r.skus[code] = s
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, code string, active bool) error {
	s, ok := r.skus[code]
	if !ok {
		return ErrNotFound
	}
	s.Active = active
	r.skus[code] = s
	return nil
}

func validInput() CreateInput {
	return CreateInput{
		Type: TypeBone, SizeMM: 25, Color: ColorGold,
		Name: "Кістка", MinLevel: 100, TargetLevel: 300, Actor: "olena",
	}
}

func TestCreateDerivesCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	sku, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "BLK-BONE-25-GLD", sku.Code)
	require.True(t, sku.Active)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, validInput())
	require.ErrorIs(t, err, ErrCodeTaken)
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	bad := validInput()
	bad.Type = BlankType("SQUARE")
	_, err := svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCode)

	bad = validInput()
	bad.Color = BlankColor("RED")
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCode)

	bad = validInput()
	bad.TargetLevel = 50
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrLevelBounds)

	bad = validInput()
	bad.Name = ""
	_, err = svc.Create(ctx, bad)
	require.Error(t, err)
}

func TestUpdateLevels(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	sku, err := svc.UpdateLevels(ctx, "BLK-BONE-25-GLD", 150, 400, "olena")
	require.NoError(t, err)
	require.Equal(t, 150, sku.MinLevel)
	require.Equal(t, 400, sku.TargetLevel)

	_, err = svc.UpdateLevels(ctx, "BLK-BONE-25-GLD", 400, 150, "olena")
	require.ErrorIs(t, err, ErrLevelBounds)

	_, err = svc.UpdateLevels(ctx, "BLK-RING-30-SIL", 10, 20, "olena")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivateHidesFromActiveList(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "BLK-BONE-25-GLD", "olena"))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
