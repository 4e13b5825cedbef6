package domain

import "testing"

func TestCategoryFromName(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"식비", CategoryFood},
		{"쇼핑", CategoryShopping},
		{"카페/간식", CategoryCafeSnack},
		{"이체", CategoryTransfer},
		{"기타", CategoryOther},
		{"존재하지않는이름", CategoryOther},
		{"Food", CategoryOther}, // only the canonical Korean names resolve
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := CategoryFromName(tt.name); got != tt.want {
			t.Errorf("CategoryFromName(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCategoryNamesOrderMatchesIDs(t *testing.T) {
	names := CategoryNames()
	if len(names) != 8 {
		t.Fatalf("expected 8 category names, got %d", len(names))
	}
	for i, name := range names {
		if CategoryFromName(name) != i+1 {
			t.Errorf("position %d: name %q maps to id %d", i, name, CategoryFromName(name))
		}
	}
}

func TestCategoryNameFallsBackForUnknownID(t *testing.T) {
	if got := CategoryName(42); got != "기타" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	if got := CategoryName(CategoryHousing); got != "주거/통신" {
		t.Fatalf("got %q", got)
	}
}

func TestValidCategoryID(t *testing.T) {
	for id := CategoryCafeSnack; id <= CategoryOther; id++ {
		if !ValidCategoryID(id) {
			t.Errorf("id %d should be valid", id)
		}
	}
	for _, id := range []int{CategoryUncategorized, -1, 9, 100} {
		if ValidCategoryID(id) {
			t.Errorf("id %d should be invalid", id)
		}
	}
}

func TestTransactionAmount(t *testing.T) {
	deposit := Transaction{Deposit: 2500000}
	if deposit.Amount() != 2500000 {
		t.Fatalf("deposit amount = %d", deposit.Amount())
	}
	withdrawal := Transaction{Withdrawal: 4500}
	if withdrawal.Amount() != -4500 {
		t.Fatalf("withdrawal amount = %d", withdrawal.Amount())
	}
}
