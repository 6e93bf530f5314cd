package mutation

import (
	"testing"

	"github.com/chinmay4o/superlinks/internal/models"
)

func TestCollectionBasics(t *testing.T) {
	col := NewCollection[models.Product]("products")
	col.Append(models.Product{ID: "p1", Title: "Ebook"})
	col.Put(models.Product{ID: "p2", Title: "Course"})
	col.Put(models.Product{ID: "p1", Title: "Ebook v2"})

	if col.Len() != 2 {
		t.Fatalf("Len() = %d", col.Len())
	}
	if got, _ := col.Get("p1"); got.Title != "Ebook v2" {
		t.Errorf("Put() did not replace: %+v", got)
	}
	if col.Target("p1") != "products/p1" {
		t.Errorf("Target() = %q", col.Target("p1"))
	}

	all := col.All()
	all[0].Title = "mutated copy"
	if got, _ := col.Get("p1"); got.Title == "mutated copy" {
		t.Error("All() must return a copy")
	}

	if _, ok := col.Remove("p1"); !ok {
		t.Error("Remove() = false")
	}
	if _, ok := col.Remove("p1"); ok {
		t.Error("second Remove() = true")
	}
}

func TestCollectionSnapshotItem(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		change func(col *Collection[models.Block])
		want   string
	}{
		{"value restored", "b", func(col *Collection[models.Block]) {
			col.Update("b", func(b models.Block) models.Block { b.Title = "changed"; return b })
		}, "a:A b:B c:C "},
		{"removed entity reinserted at its index", "b", func(col *Collection[models.Block]) {
			col.Remove("b")
		}, "a:A b:B c:C "},
		{"added entity removed", "tmp", func(col *Collection[models.Block]) {
			col.Append(models.Block{ID: "tmp", Title: "T"})
		}, "a:A b:B c:C "},
		{"unrelated changes kept", "b", func(col *Collection[models.Block]) {
			col.Update("b", func(b models.Block) models.Block { b.Title = "changed"; return b })
			col.Remove("a")
			col.Append(models.Block{ID: "d", Title: "D"})
		}, "b:B c:C d:D "},
		{"index clamped when the collection shrank", "c", func(col *Collection[models.Block]) {
			col.Remove("c")
			col.Remove("a")
		}, "b:B c:C "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := NewCollection[models.Block]("blocks")
			col.Replace([]models.Block{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}})

			restore := col.SnapshotItem(tt.id)
			tt.change(col)
			restore()

			if got := titles(col); got != tt.want {
				t.Errorf("after restore = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectionReorderAndReplaceID(t *testing.T) {
	col := NewCollection[models.Block]("blocks")
	col.Replace([]models.Block{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}})

	col.Reorder([]string{"c", "a", "zzz"})
	want := []string{"c", "a", "b", "d"}
	for i, b := range col.All() {
		if b.ID != want[i] {
			t.Fatalf("order = %+v, want %v", col.All(), want)
		}
	}

	if !col.ReplaceID("a", models.Block{ID: "a2"}) {
		t.Fatal("ReplaceID() = false")
	}
	if col.All()[1].ID != "a2" {
		t.Errorf("ReplaceID() moved the entity: %+v", col.All())
	}
	if col.ReplaceID("missing", models.Block{ID: "x"}) {
		t.Error("ReplaceID() of a missing id = true")
	}
}
