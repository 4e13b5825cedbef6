/**
 * @description
 * This package implements the internal category resolver: the deterministic
 * fast path that maps a merchant description to a spending category before the
 * batch is escalated to the external model. It combines a keyword rule table
 * with an optional merchant-directory lookup and memoizes results.
 */

package category

import (
	"context"
	"strings"
	"sync"

	"github.com/moabank/ledger-service/internal/domain"
)

// PlaceDirectory resolves a merchant name to a category id through an
// external, typically location-aware, place lookup. Implementations return
// ok=false when they have no confident answer.
type PlaceDirectory interface {
	Lookup(ctx context.Context, merchant string) (categoryID int, ok bool, err error)
}

// Resolver maps merchant descriptions to category ids. Safe for concurrent
// use; the resolver mutates no pipeline state, only its own memo cache.
type Resolver struct {
	directory PlaceDirectory

	mu   sync.RWMutex
	memo map[string]int
}

// NewResolver creates a resolver. directory may be nil, in which case only
// the keyword rules apply.
func NewResolver(directory PlaceDirectory) *Resolver {
	return &Resolver{
		directory: directory,
		memo:      make(map[string]int),
	}
}

// keywordRules maps substrings (matched case-insensitively against the
// normalized description) to category ids. First match in table order wins,
// so more specific entries come before generic ones.
var keywordRules = []struct {
	keyword    string
	categoryID int
}{
	{"스타벅스", domain.CategoryCafeSnack},
	{"starbucks", domain.CategoryCafeSnack},
	{"투썸", domain.CategoryCafeSnack},
	{"이디야", domain.CategoryCafeSnack},
	{"메가커피", domain.CategoryCafeSnack},
	{"커피", domain.CategoryCafeSnack},
	{"카페", domain.CategoryCafeSnack},
	{"cafe", domain.CategoryCafeSnack},
	{"베이커리", domain.CategoryCafeSnack},
	{"파리바게뜨", domain.CategoryCafeSnack},
	{"뚜레쥬르", domain.CategoryCafeSnack},

	{"관리비", domain.CategoryHousing},
	{"월세", domain.CategoryHousing},
	{"가스요금", domain.CategoryHousing},
	{"전기요금", domain.CategoryHousing},
	{"수도요금", domain.CategoryHousing},
	{"통신", domain.CategoryHousing},
	{"skt", domain.CategoryHousing},
	{"kt ", domain.CategoryHousing},
	{"lg유플러스", domain.CategoryHousing},

	{"배달의민족", domain.CategoryFood},
	{"요기요", domain.CategoryFood},
	{"쿠팡이츠", domain.CategoryFood},
	{"김밥", domain.CategoryFood},
	{"식당", domain.CategoryFood},
	{"치킨", domain.CategoryFood},
	{"맥도날드", domain.CategoryFood},
	{"버거킹", domain.CategoryFood},
	{"피자", domain.CategoryFood},

	{"지하철", domain.CategoryTransport},
	{"버스", domain.CategoryTransport},
	{"택시", domain.CategoryTransport},
	{"카카오t", domain.CategoryTransport},
	{"코레일", domain.CategoryTransport},
	{"주유", domain.CategoryTransport},
	{"하이패스", domain.CategoryTransport},

	{"쿠팡", domain.CategoryShopping},
	{"지마켓", domain.CategoryShopping},
	{"11번가", domain.CategoryShopping},
	{"무신사", domain.CategoryShopping},
	{"올리브영", domain.CategoryShopping},
	{"다이소", domain.CategoryShopping},
	{"이마트", domain.CategoryShopping},
	{"홈플러스", domain.CategoryShopping},

	{"cgv", domain.CategoryLeisure},
	{"메가박스", domain.CategoryLeisure},
	{"롯데시네마", domain.CategoryLeisure},
	{"넷플릭스", domain.CategoryLeisure},
	{"netflix", domain.CategoryLeisure},
	{"멜론", domain.CategoryLeisure},
	{"노래방", domain.CategoryLeisure},
	{"볼링", domain.CategoryLeisure},

	{"이체", domain.CategoryTransfer},
	{"송금", domain.CategoryTransfer},
	{"급여", domain.CategoryTransfer},
	{"월급", domain.CategoryTransfer},
	{"토스", domain.CategoryTransfer},
	{"카카오페이송금", domain.CategoryTransfer},
	{"atm", domain.CategoryTransfer},
}

// Resolve maps one description to a category id, returning
// domain.CategoryOther when neither the rule table nor the directory has a
// confident match. Pure from the caller's perspective.
func (r *Resolver) Resolve(ctx context.Context, description string) int {
	normalized := Normalize(description)
	if normalized == "" {
		return domain.CategoryOther
	}

	r.mu.RLock()
	if id, ok := r.memo[normalized]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	id := r.resolveUncached(ctx, normalized)

	// Only confident results are memoized; an "other" answer may still be
	// upgraded by the external stage on a later run.
	if id != domain.CategoryOther {
		r.mu.Lock()
		r.memo[normalized] = id
		r.mu.Unlock()
	}
	return id
}

func (r *Resolver) resolveUncached(ctx context.Context, normalized string) int {
	for _, rule := range keywordRules {
		if strings.Contains(normalized, rule.keyword) {
			return rule.categoryID
		}
	}

	if r.directory != nil {
		if id, ok, err := r.directory.Lookup(ctx, normalized); err == nil && ok && domain.ValidCategoryID(id) {
			return id
		}
	}
	return domain.CategoryOther
}

// Normalize trims and lowercases a raw merchant description for matching and
// cache keying. Internal whitespace runs collapse to a single space.
func Normalize(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}
