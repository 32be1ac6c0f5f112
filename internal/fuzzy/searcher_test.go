package fuzzy

import (
	"fmt"
	"sync"
	"testing"
)

func TestSearcher_Search(t *testing.T) {
	brands := []string{"Nike", "Adidas", "Puma", "New Balance", "Reebok"}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"exact", "Nike", []string{"Nike"}},
		{"case and spacing", "  nEW   balance ", []string{"New Balance"}},
		{"one typo", "Adidaz", []string{"Adidas"}},
		{"embedded in line", "JUST DO IT NIKE 2024", []string{"Nike"}},
		{"no match", "zzzzzz", []string{}},
		{"empty query", "   ", []string{}},
	}

	s := NewSearcher(brands)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Search(tt.query)
			if len(got) == 0 && len(tt.want) == 0 {
				if got == nil {
					t.Error("expected empty, non-nil result")
				}
				return
			}
			if len(got) < len(tt.want) || fmt.Sprint(got[:len(tt.want)]) != fmt.Sprint(tt.want) {
				t.Errorf("Search(%q) = %v, want prefix %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearcher_TopMatch(t *testing.T) {
	s := NewSearcher([]string{"Nike", "Adidas"})
	got := s.Search("Nike")
	if len(got) == 0 || got[0] != "Nike" {
		t.Fatalf("Search(Nike) = %v, want Nike first", got)
	}
}

func TestSearcher_MaxResultsAndTies(t *testing.T) {
	s := NewSearcher([]string{"abcd", "abce", "abcf", "abcg"}, WithMaxResults(2), WithThreshold(0.5))

	got := s.SearchScored("abcx")
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", got)
	}
	if got[0].Text != "abcd" || got[1].Text != "abce" {
		t.Errorf("ties should keep dictionary order, got %v", got)
	}
	if got[0].Score != 0.75 {
		t.Errorf("score = %v, want 0.75", got[0].Score)
	}
}

func TestSearcher_Threshold(t *testing.T) {
	s := NewSearcher([]string{"Reebok"}, WithThreshold(0.9))
	if got := s.Search("Reebak"); len(got) != 0 {
		t.Errorf("expected nothing above 0.9, got %v", got)
	}
	s = NewSearcher([]string{"Reebok"}, WithThreshold(0.8))
	if got := s.Search("Reebak"); len(got) != 1 {
		t.Errorf("expected match above 0.8, got %v", got)
	}
}

func TestSearcher_SearchAll(t *testing.T) {
	s := NewSearcher([]string{"Nike", "Adidas"})

	if got := s.SearchScored("Adxxxx"); len(got) != 0 {
		t.Fatalf("SearchScored should apply the threshold, got %v", got)
	}

	got := s.SearchAll("Adxxxx")
	if len(got) != 1 || got[0].Text != "Adidas" {
		t.Fatalf("SearchAll(Adxxxx) = %v, want only Adidas", got)
	}
	if got[0].Score <= 0 || got[0].Score >= 0.6 {
		t.Errorf("score = %v, want below the default threshold", got[0].Score)
	}

	bounded := NewSearcher([]string{"abcd", "abce", "abcf"}, WithMaxResults(2), WithThreshold(0.99))
	if got := bounded.SearchAll("abcx"); len(got) != 2 || got[0].Text != "abcd" {
		t.Errorf("SearchAll should stay bounded and ordered, got %v", got)
	}
}

func TestSearcher_SetDictionary(t *testing.T) {
	s := NewSearcher([]string{"Nike", " ", ""})
	if s.Len() != 1 {
		t.Errorf("blank entries should be dropped, Len() = %d", s.Len())
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.SetDictionary([]string{"Puma", "Nike"})
			} else {
				s.Search("Nike")
			}
		}(i)
	}
	wg.Wait()

	if got := s.Search("puma"); len(got) == 0 || got[0] != "Puma" {
		t.Errorf("after swap Search(puma) = %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Nike", "nike", 1},
		{"", "nike", 0},
		{"abcd", "wxyz", 0},
		{"Nike Air", "Nike", 1},
		{"Nik", "Nike", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
