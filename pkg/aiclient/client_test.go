package aiclient

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	descriptions := []string{"올리브영 홍대점", "배달의민족"}
	categories := []string{"카페/간식", "식비", "쇼핑", "기타"}

	prompt := BuildPrompt(descriptions, categories)

	for _, name := range categories {
		if !strings.Contains(prompt, "- "+name) {
			t.Errorf("prompt missing category %q", name)
		}
	}
	if !strings.Contains(prompt, "1. 올리브영 홍대점") || !strings.Contains(prompt, "2. 배달의민족") {
		t.Error("prompt missing numbered descriptions")
	}
	if !strings.Contains(prompt, "기타") {
		t.Error("prompt missing the fallback instruction")
	}
}

func TestParseNames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "plain comma list",
			raw:  "쇼핑, 식비",
			want: []string{"쇼핑", "식비"},
		},
		{
			name: "surrounding whitespace",
			raw:  "  쇼핑 ,식비  \n",
			want: []string{"쇼핑", "식비"},
		},
		{
			name: "code fence",
			raw:  "```\n쇼핑, 식비\n```",
			want: []string{"쇼핑", "식비"},
		},
		{
			name: "extra lines after the answer",
			raw:  "쇼핑, 식비\n추가 설명입니다.",
			want: []string{"쇼핑", "식비"},
		},
		{
			name: "leading blank lines",
			raw:  "\n\n쇼핑, 식비",
			want: []string{"쇼핑", "식비"},
		},
		{
			name: "single name",
			raw:  "기타",
			want: []string{"기타"},
		},
		{
			name: "empty answer",
			raw:  "",
			want: []string{},
		},
		{
			name: "stray commas dropped",
			raw:  "쇼핑,, 식비,",
			want: []string{"쇼핑", "식비"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNames(tt.raw)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseNames(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
