package builtin

import (
	"errors"
	"reflect"
	"testing"

	"lodging/internal/table"
)

func denue() *table.Table {
	return table.MustNew([]table.Column{
		{Name: "id", Kind: table.String},
		{Name: "nom_estab", Kind: table.String},
		{Name: "nombre_act", Kind: table.String},
		{Name: "nomb_asent", Kind: table.String},
		{Name: "municipio", Kind: table.String},
		{Name: "latitud", Kind: table.Float},
		{Name: "longitud", Kind: table.Float},
	}, []table.Row{
		{"1", "HOTEL GILLOW", "Hoteles con otros servicios integrados", "CENTRO", "Cuauhtémoc", 19.43, -99.13},
		{"2", "HOTEL ROMA", "Hoteles sin otros servicios integrados", "ROMA NORTE", "Cuauhtémoc", 19.41, -99.16},
		{"3", "POSADA", "Moteles", nil, "Coyoacán", nil, nil},
	})
}

func TestProject(t *testing.T) {
	t.Parallel()

	keep := []string{"nom_estab", "nombre_act", "nomb_asent", "municipio", "latitud", "longitud"}

	tests := []struct {
		name      string
		p         Project
		wantNames []string
		wantErr   error
	}{
		{
			name:      "keep_and_rename",
			p:         Project{Keep: keep, Rename: map[string]string{"municipio": "alcaldia"}},
			wantNames: []string{"nom_estab", "nombre_act", "nomb_asent", "alcaldia", "latitud", "longitud"},
		},
		{
			name:      "reorders",
			p:         Project{Keep: []string{"municipio", "nom_estab"}},
			wantNames: []string{"municipio", "nom_estab"},
		},
		{
			name:    "unknown_kept_column",
			p:       Project{Keep: []string{"nom_estab", "colonia"}},
			wantErr: table.ErrUnknownColumn,
		},
		{
			name:    "rename_source_not_kept",
			p:       Project{Keep: []string{"nom_estab"}, Rename: map[string]string{"municipio": "alcaldia"}},
			wantErr: table.ErrUnknownColumn,
		},
		{
			name:    "rename_collides",
			p:       Project{Keep: []string{"nom_estab", "municipio"}, Rename: map[string]string{"municipio": "nom_estab"}},
			wantErr: table.ErrDuplicateColumn,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := denue()
			out, err := tc.p.Apply(in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !reflect.DeepEqual(out.Names(), tc.wantNames) {
				t.Fatalf("names = %v, want %v", out.Names(), tc.wantNames)
			}
			if out.Len() != in.Len() {
				t.Fatalf("row count %d, want %d", out.Len(), in.Len())
			}
			if in.Width() != 7 {
				t.Fatalf("input mutated")
			}
		})
	}
}

func TestProject_PreservesRowCountAndOrder(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 20; seed++ {
		in := randomListings(seed, int(seed)*7)
		out, err := Project{Keep: []string{"price", "id"}}.Apply(in)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if out.Len() != in.Len() {
			t.Fatalf("seed %d: rows %d, want %d", seed, out.Len(), in.Len())
		}
		if !reflect.DeepEqual(column(out, "id"), column(in, "id")) {
			t.Fatalf("seed %d: row order changed", seed)
		}
	}
}

func TestDrop(t *testing.T) {
	t.Parallel()

	out, err := Drop{Columns: []string{"id", "latitud", "longitud"}}.Apply(denue())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{"nom_estab", "nombre_act", "nomb_asent", "municipio"}
	if !reflect.DeepEqual(out.Names(), want) {
		t.Fatalf("names = %v, want %v", out.Names(), want)
	}

	if _, err := (Drop{Columns: []string{"license"}}).Apply(denue()); !errors.Is(err, table.ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
}

func TestConcat_SettlementBoroughLabel(t *testing.T) {
	t.Parallel()

	out, err := Concat{Dst: "col_alc", Sep: "/", Columns: []string{"nomb_asent", "municipio"}}.Apply(denue())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := column(out, "col_alc")
	want := []any{"CENTRO/Cuauhtémoc", "ROMA NORTE/Cuauhtémoc", "nan/Coyoacán"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("col_alc = %v, want %v", got, want)
	}
}
