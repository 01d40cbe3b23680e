package catalog

import "testing"

func TestTemplateKeysUniquePerActivity(t *testing.T) {
	for _, activity := range Activities() {
		seen := map[string]bool{}
		for _, template := range Defaults(activity.ID) {
			if seen[template.Key] {
				t.Fatalf("activity %s has duplicate key %s", activity.ID, template.Key)
			}
			seen[template.Key] = true
		}
		if len(seen) == 0 {
			t.Fatalf("activity %s has no templates", activity.ID)
		}
	}
}

func TestTemplatesCarryValidCategories(t *testing.T) {
	valid := map[string]bool{CategoryBefore: true, CategoryDuring: true, CategoryAfter: true}
	for _, activity := range Activities() {
		for _, template := range Defaults(activity.ID) {
			if !valid[template.Category] {
				t.Fatalf("template %s/%s has category %q", activity.ID, template.Key, template.Category)
			}
			if template.Title == "" || template.Body == "" || template.IconKey == "" || template.Color == "" {
				t.Fatalf("template %s/%s has blank fields", activity.ID, template.Key)
			}
		}
	}
}

func TestIsKnownActivity(t *testing.T) {
	if !IsKnownActivity("raft-building") {
		t.Fatal("raft-building should be known")
	}
	if IsKnownActivity("zorbing") {
		t.Fatal("zorbing should not be known")
	}
}

func TestDefaultsReturnsFreshSlice(t *testing.T) {
	first := Defaults("raft-building")
	first[0].Title = "mutated"
	second := Defaults("raft-building")
	if second[0].Title == "mutated" {
		t.Fatal("Defaults must not expose shared backing storage")
	}
}
