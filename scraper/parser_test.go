package scraper

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const baseURL = "https://www.megaleiloes.com.br"

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestParsePage_SectionFixture(t *testing.T) {
	page, err := ParsePage(bytes.NewReader(loadFixture(t, "section_page.html")), baseURL, "imoveis")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if page.LastPage != 7 {
		t.Fatalf("expected last page 7, got %d", page.LastPage)
	}
	if len(page.Listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(page.Listings))
	}

	apt := page.Listings[0]
	if apt.Link != baseURL+"/imoveis/apartamentos/sp/sao-paulo/apartamento-101" {
		t.Fatalf("unexpected link %s", apt.Link)
	}
	if apt.IdentityKey != apt.Link {
		t.Fatalf("identity key %s differs from link", apt.IdentityKey)
	}
	if apt.ExternalID != "101" {
		t.Fatalf("expected external id 101, got %q", apt.ExternalID)
	}
	if apt.Title != "Apartamento em São Paulo" {
		t.Fatalf("unexpected title %q", apt.Title)
	}
	if apt.Section != "imoveis" {
		t.Fatalf("unexpected section %q", apt.Section)
	}
	if apt.CurrentValue == nil || !apt.CurrentValue.Equal(mustDecimal(t, "150000")) {
		t.Fatalf("expected current value 150000, got %v", apt.CurrentValue)
	}
	if apt.FirstRoundValue == nil || !apt.FirstRoundValue.Equal(mustDecimal(t, "200000")) {
		t.Fatalf("expected first round value 200000, got %v", apt.FirstRoundValue)
	}
	if apt.AuctionRound == nil || *apt.AuctionRound != 2 {
		t.Fatalf("expected round 2, got %v", apt.AuctionRound)
	}
	wantDate := time.Date(2024, 5, 24, 17, 0, 0, 0, time.UTC)
	if apt.AuctionDate == nil || !apt.AuctionDate.Equal(wantDate) {
		t.Fatalf("expected auction date %v, got %v", wantDate, apt.AuctionDate)
	}
	wantFirst := time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)
	if apt.FirstRoundDate == nil || !apt.FirstRoundDate.Equal(wantFirst) {
		t.Fatalf("expected first round date %v, got %v", wantFirst, apt.FirstRoundDate)
	}
	if apt.DiscountPercentage == nil || !apt.DiscountPercentage.Equal(mustDecimal(t, "25")) {
		t.Fatalf("expected discount 25, got %v", apt.DiscountPercentage)
	}
	if !apt.HasBid {
		t.Fatal("expected has_bid true")
	}
	if !apt.IsActive {
		t.Fatal("expected active listing")
	}

	car := page.Listings[1]
	if car.Link != baseURL+"/veiculos/carros/fiat-uno-202" {
		t.Fatalf("unexpected link %s", car.Link)
	}
	if car.CurrentValue == nil || !car.CurrentValue.Equal(mustDecimal(t, "12500.50")) {
		t.Fatalf("expected 12500.50, got %v", car.CurrentValue)
	}
	if car.AuctionRound == nil || *car.AuctionRound != 1 {
		t.Fatalf("expected round 1, got %v", car.AuctionRound)
	}
	if car.DiscountPercentage != nil {
		t.Fatalf("first round listing should have no discount, got %v", car.DiscountPercentage)
	}
	if car.FirstRoundValue != nil {
		t.Fatalf("expected no first round value, got %v", car.FirstRoundValue)
	}
	if car.HasBid {
		t.Fatal("expected has_bid false for 0 lances")
	}

	lot := page.Listings[2]
	if lot.IsActive {
		t.Fatal("expected closed listing to be inactive")
	}
	if lot.CurrentValue != nil || lot.AuctionRound != nil || lot.AuctionDate != nil {
		t.Fatalf("expected empty auction info, got %+v", lot)
	}
	if lot.HasBid {
		t.Fatal("expected has_bid false without gavel icon")
	}
}

func TestParsePage_NoPagination(t *testing.T) {
	html := `<html><body><div class="card"><a href="/imoveis/casa-9">Casa</a></div></body></html>`
	page, err := ParsePage(strings.NewReader(html), baseURL, "imoveis")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if page.LastPage != 1 {
		t.Fatalf("expected 1 page, got %d", page.LastPage)
	}
	if len(page.Listings) != 1 || page.Listings[0].Link != baseURL+"/imoveis/casa-9" {
		t.Fatalf("unexpected listings %+v", page.Listings)
	}
	if !page.Listings[0].IsActive {
		t.Fatal("expected active by default")
	}
}

func TestParseBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"R$ 1.234.567,89", "1234567.89"},
		{"Lance mínimo: R$ 500,00", "500"},
		{"R$12,00", "12"},
		{"R$ 1.000", ""},
		{"sem valor", ""},
	}

	for _, tt := range tests {
		got := ParseBRL(tt.in)
		if tt.want == "" {
			if got != nil {
				t.Errorf("ParseBRL(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || !got.Equal(mustDecimal(t, tt.want)) {
			t.Errorf("ParseBRL(%q) = %v, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseAuctionDate(t *testing.T) {
	got := ParseAuctionDate("2ª Praça: 31/12/2024 às 23:30")
	want := time.Date(2025, 1, 1, 2, 30, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}

	if d := ParseAuctionDate("31/02/2024 às 10:00"); d != nil {
		t.Fatalf("expected nil for impossible date, got %v", d)
	}
	if d := ParseAuctionDate("em breve"); d != nil {
		t.Fatalf("expected nil for missing date, got %v", d)
	}
}

func TestScrapeDiscount(t *testing.T) {
	two, one := 2, 1
	cur := decimal.NewFromInt(8000)
	first := decimal.NewFromInt(10000)

	if d := scrapeDiscount(&two, &cur, &first); d == nil || !d.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20, got %v", d)
	}
	if d := scrapeDiscount(&one, &cur, &first); d != nil {
		t.Fatalf("round 1 must not carry a discount, got %v", d)
	}
	if d := scrapeDiscount(&two, &first, &cur); d != nil {
		t.Fatalf("current above first round must not carry a discount, got %v", d)
	}
	if d := scrapeDiscount(nil, &cur, &first); d != nil {
		t.Fatalf("unknown round must not carry a discount, got %v", d)
	}
}
