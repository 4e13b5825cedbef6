package domain

// Category ids are a fixed, small enumeration. Every classified transaction
// carries exactly one of these; CategoryOther doubles as the fallback for
// anything neither the rule table nor the model can place.
const (
	CategoryCafeSnack = 1 // 카페/간식
	CategoryHousing   = 2 // 주거/통신
	CategoryFood      = 3 // 식비
	CategoryTransport = 4 // 교통
	CategoryShopping  = 5 // 쇼핑
	CategoryLeisure   = 6 // 문화/여가
	CategoryTransfer  = 7 // 이체
	CategoryOther     = 8 // 기타

	// CategoryUncategorized is the sentinel a transaction carries between
	// insert and category persistence.
	CategoryUncategorized = 0
)

// categoryNames maps the canonical Korean display name to its id. The external
// classification model is prompted with exactly these names and is expected to
// answer with them.
var categoryNames = map[string]int{
	"카페/간식": CategoryCafeSnack,
	"주거/통신": CategoryHousing,
	"식비":    CategoryFood,
	"교통":    CategoryTransport,
	"쇼핑":    CategoryShopping,
	"문화/여가": CategoryLeisure,
	"이체":    CategoryTransfer,
	"기타":    CategoryOther,
}

var categoryIDs = map[int]string{
	CategoryCafeSnack: "카페/간식",
	CategoryHousing:   "주거/통신",
	CategoryFood:      "식비",
	CategoryTransport: "교통",
	CategoryShopping:  "쇼핑",
	CategoryLeisure:   "문화/여가",
	CategoryTransfer:  "이체",
	CategoryOther:     "기타",
}

// CategoryFromName resolves a category display name to its id, defaulting to
// CategoryOther for anything unrecognized (including garbled model output).
func CategoryFromName(name string) int {
	if id, ok := categoryNames[name]; ok {
		return id
	}
	return CategoryOther
}

// CategoryName returns the display name for an id, or the "other" name for
// ids outside the enumeration.
func CategoryName(id int) string {
	if name, ok := categoryIDs[id]; ok {
		return name
	}
	return categoryIDs[CategoryOther]
}

// CategoryNames returns the display names in id order, for building the
// classification prompt.
func CategoryNames() []string {
	names := make([]string, 0, len(categoryIDs))
	for id := CategoryCafeSnack; id <= CategoryOther; id++ {
		names = append(names, categoryIDs[id])
	}
	return names
}

// ValidCategoryID reports whether id is inside the fixed 1–8 enumeration.
func ValidCategoryID(id int) bool {
	return id >= CategoryCafeSnack && id <= CategoryOther
}
