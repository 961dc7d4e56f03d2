package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrades_OrderAndSpelling(t *testing.T) {
	assert.Equal(t, []string{"V5", "V8", "5.11a"}, Grades("dame las V5 V8 y 5.11a"))
}

func TestGrades_CaseInsensitiveDedup(t *testing.T) {
	assert.Equal(t, []string{"v5", "5.11A"}, Grades("v5 y V5, 5.11A o 5.11a"))
}

func TestGrades_BoulderBeforeRoute(t *testing.T) {
	assert.Equal(t, []string{"v3", "5.10+", "5.12-"}, Grades("5.10+ o 5.12- y un v3"))
}

func TestGrades_Idempotent(t *testing.T) {
	in := "V5 V5 5.11 V5"
	first := Grades(in)
	assert.Equal(t, []string{"V5", "5.11"}, first)
	assert.Equal(t, first, Grades(in))
}

func TestGrades_None(t *testing.T) {
	assert.Nil(t, Grades("rutas bonitas"))
	assert.Nil(t, Grades("AV8 no es un grado"))
}

func TestGradeDetector_Discipline(t *testing.T) {
	d := NewGradeDetector(DefaultDisciplines())

	tests := []struct {
		input string
		want  string
	}{
		{"boulders en comadres", TypeBoulderGroup},
		{"unos bloques", TypeBoulderGroup},
		{"rutas deportivas", TypeRouteGroup},
		{"una vía larga", TypeRouteGroup},
		{"boulders y rutas", ""},
		{"bouldering or sport?", ""},
		{"que hay en candelas", ""},
		{"todavía no sé", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Discipline(tt.input))
		})
	}
}

func TestGradeDetector_Detect(t *testing.T) {
	d := NewGradeDetector(DefaultDisciplines())
	got := d.Detect("boulders V4")
	assert.Equal(t, Detection{Discipline: TypeBoulderGroup, Grades: []string{"V4"}}, got)
}
