package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Midnight Velvet", "midnight-velvet"},
		{"punctuation collapsed", "Coffin Tips — Cherry & Chrome!", "coffin-tips-cherry-chrome"},
		{"numbers kept", "24-pc French Set", "24-pc-french-set"},
		{"leading and trailing junk", "  ~Glazed Donut~  ", "glazed-donut"},
		{"already a slug", "matte-mauve", "matte-mauve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestNormalize_DefaultsFirstImagePrimary(t *testing.T) {
	p := &Product{
		Title: "Pearl Shimmer",
		Images: []Image{
			{URL: "https://cdn.example/pearl-1.jpg"},
			{URL: "https://cdn.example/pearl-2.jpg"},
		},
	}

	p.Normalize()

	assert.True(t, p.Images[0].IsPrimary)
	assert.False(t, p.Images[1].IsPrimary)
	assert.Equal(t, "https://cdn.example/pearl-1.jpg", p.PrimaryImage())
}

func TestNormalize_KeepsExplicitPrimary(t *testing.T) {
	p := &Product{
		Title: "Pearl Shimmer",
		Images: []Image{
			{URL: "https://cdn.example/pearl-1.jpg"},
			{URL: "https://cdn.example/pearl-2.jpg", IsPrimary: true},
		},
	}

	p.Normalize()

	assert.False(t, p.Images[0].IsPrimary)
	assert.Equal(t, "https://cdn.example/pearl-2.jpg", p.PrimaryImage())
}

func TestNormalize_SlugDerivedOnce(t *testing.T) {
	p := &Product{Title: "Midnight Velvet"}
	p.Normalize()
	require.Equal(t, "midnight-velvet", p.Slug)

	// A later title edit must not move the slug.
	p.Title = "Midnight Velvet (Restocked)"
	p.Normalize()
	assert.Equal(t, "midnight-velvet", p.Slug)
}

func TestFindVariant(t *testing.T) {
	p := &Product{Variants: []Variant{
		{Size: "S", Design: "french", Stock: 3},
		{Size: "M", Design: "french", Stock: 0},
	}}

	v, err := p.FindVariant("S", "french")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Stock)

	_, err = p.FindVariant("L", "french")
	assert.ErrorIs(t, err, ErrVariantNotFound)
}
