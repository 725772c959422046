package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase(t *testing.T) {
	cases := map[string]string{
		"  Medellín ":            "medellin",
		"NARIÑO":                 "narino",
		"Valle   del\tCauca":     "valle del cauca",
		"Bogotá, D.C.":           "bogota d c",
		"(Antioquia)":            "antioquia",
		"Norte de Santander":     "norte de santander",
		"\"Cúcuta\"":             "cucuta",
		"Departamento de Caldas": "departamento de caldas",
		"":                       "",
	}
	for in, want := range cases {
		in, want := in, want
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Base(in))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	t.Run("capital spellings collapse", func(t *testing.T) {
		want := Canonicalize("bogota dc")
		assert.Equal(t, CapitalDistrict, want)
		assert.Equal(t, want, Canonicalize("Bogotá D.C."))
		assert.Equal(t, want, Canonicalize("BOGOTA D C"))
		assert.Equal(t, want, Canonicalize("Bogotá"))
		assert.Equal(t, want, Canonicalize("Santa Fe de Bogotá"))
	})

	t.Run("administrative prefixes and suffixes", func(t *testing.T) {
		assert.Equal(t, "caldas", Canonicalize("Departamento de Caldas"))
		assert.Equal(t, "valle del cauca", Canonicalize("Departamento del Valle del Cauca"))
		assert.Equal(t, "choco", Canonicalize("Dpto. del Chocó"))
		assert.Equal(t, "soacha", Canonicalize("Municipio de Soacha"))
		assert.Equal(t, "pasto", Canonicalize("Ciudad de Pasto"))
		assert.Equal(t, "antioquia", Canonicalize("Antioquia Departamento"))
		assert.Equal(t, "antioquia", Canonicalize("Departamento de Antioquia Departamento"))
	})

	t.Run("historical aliases", func(t *testing.T) {
		assert.Equal(t, "cartagena", Canonicalize("Cartagena de Indias"))
		assert.Equal(t, "santa marta", Canonicalize("Santa Marta (D.T.C.H.)"))
		assert.Equal(t, "san andres", Canonicalize("Archipiélago de San Andrés, Providencia y Santa Catalina"))
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			"Bogotá D.C.", "Departamento de Departamento de Meta", "  SAN JOSÉ DEL GUAVIARE ",
			"Cartagena de Indias", "Municipio de Ciudad de Pasto", "Quindío depto", "x",
		}
		for _, in := range inputs {
			once := Canonicalize(in)
			assert.Equal(t, once, Canonicalize(once), in)
		}
	})

	t.Run("alias targets are fixed points", func(t *testing.T) {
		for from, to := range aliases {
			assert.Equal(t, to, Canonicalize(to), from)
		}
	})
}

func TestIsCapitalDistrict(t *testing.T) {
	for k := range capitalSpellings {
		assert.True(t, IsCapitalDistrict(k), k)
	}
	for _, k := range []string{"cundinamarca", "soacha", "bogota norte", "", "medellin"} {
		assert.False(t, IsCapitalDistrict(k), k)
	}
	assert.True(t, IsCapitalDistrict(Canonicalize("Bogotá, Distrito Capital")))
}

func TestCompositeKeys(t *testing.T) {
	assert.Equal(t, CapitalDistrict, DepartmentForCity("bogota dc", "cundinamarca"))
	assert.Equal(t, "cundinamarca", DepartmentForCity("soacha", "cundinamarca"))

	key := CompositeKey("medellin", "antioquia")
	require.Equal(t, "medellin__antioquia", key)
	c, d := SplitCompositeKey(key)
	assert.Equal(t, "medellin", c)
	assert.Equal(t, "antioquia", d)

	c, d = SplitCompositeKey("medellin")
	assert.Equal(t, "medellin", c)
	assert.Empty(t, d)
}
