package scraper

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"auction_monitor/identity"
	"auction_monitor/models"
)

var (
	brlRegex    = regexp.MustCompile(`R\$\s*([\d.]+,\d{2})`)
	dateRegex   = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s*às\s*(\d{2}:\d{2})`)
	pageRegex   = regexp.MustCompile(`pagina=(\d+)`)
	digitsRegex = regexp.MustCompile(`\d+`)

	hundred = decimal.NewFromInt(100)
)

// Auction times on the site are Brasília local time.
var saoPaulo = loadSaoPaulo()

func loadSaoPaulo() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// Page is one parsed section page.
type Page struct {
	Listings []models.ScrapedListing
	LastPage int
}

// ParsePage extracts every card with a link and the pagination bound.
func ParsePage(r io.Reader, baseURL, section string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{LastPage: lastPage(doc)}
	doc.Find("div.card").Each(func(i int, s *goquery.Selection) {
		if l, ok := parseCard(s, baseURL); ok {
			l.Section = section
			page.Listings = append(page.Listings, l)
		}
	})
	return page, nil
}

func lastPage(doc *goquery.Document) int {
	href, ok := doc.Find("ul.pagination li.last a").First().Attr("href")
	if !ok {
		return 1
	}
	m := pageRegex.FindStringSubmatch(href)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func parseCard(card *goquery.Selection, baseURL string) (models.ScrapedListing, bool) {
	var l models.ScrapedListing

	link, ok := card.Find("a[href]").First().Attr("href")
	link = strings.TrimSpace(link)
	if !ok || link == "" {
		return l, false
	}
	if !strings.HasPrefix(link, "http") {
		link = baseURL + link
	}

	l.Link = identity.Normalize(link)
	l.IdentityKey = l.Link
	l.ExternalID = identity.ExternalID(link)
	l.Title = strings.TrimSpace(card.Find(".card-title").First().Text())

	text := strings.ToLower(card.Text())
	l.IsActive = !strings.Contains(text, "encerrado") && !strings.Contains(text, "finalizado")
	l.HasBid = hasBid(card)

	if active := card.Find(".instance.active").First(); active.Length() > 0 {
		l.CurrentValue = ParseBRL(active.Find(".card-instance-value").First().Text())

		dateEl := active.Find(".card-second-instance-date, .card-first-instance-date").First()
		if dateEl.Length() > 0 {
			round := 1
			if dateEl.HasClass("card-second-instance-date") {
				round = 2
			}
			l.AuctionRound = &round
			l.AuctionDate = ParseAuctionDate(dateEl.Text())
		}
	}

	if first := card.Find(".instance.first.passed").First(); first.Length() > 0 {
		l.FirstRoundValue = ParseBRL(first.Find(".card-instance-value").First().Text())
		l.FirstRoundDate = ParseAuctionDate(first.Find(".card-first-instance-date").First().Text())
	}

	l.DiscountPercentage = scrapeDiscount(l.AuctionRound, l.CurrentValue, l.FirstRoundValue)

	return l, true
}

// hasBid reads the bid counter next to the gavel icon.
func hasBid(card *goquery.Selection) bool {
	icon := card.Find("i.fa-legal").First()
	if icon.Length() == 0 {
		return false
	}
	span := icon.ParentsFiltered("span").First()
	if span.Length() == 0 {
		return false
	}
	m := digitsRegex.FindString(span.Text())
	if m == "" {
		return false
	}
	n, err := strconv.Atoi(m)
	return err == nil && n > 0
}

// scrapeDiscount is the discount shown while the second round is running.
func scrapeDiscount(round *int, current, first *decimal.Decimal) *decimal.Decimal {
	if round == nil || *round != 2 || current == nil || first == nil {
		return nil
	}
	if !current.IsPositive() || !current.LessThan(*first) {
		return nil
	}
	d := decimal.NewFromInt(1).Sub(current.Div(*first)).Mul(hundred).Round(2)
	return &d
}

// ParseBRL reads the first "R$ 1.234,56" amount in text.
func ParseBRL(text string) *decimal.Decimal {
	m := brlRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := strings.ReplaceAll(m[1], ".", "")
	raw = strings.Replace(raw, ",", ".", 1)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

// ParseAuctionDate reads "dd/mm/yyyy às hh:mm" in São Paulo time and returns it in UTC.
func ParseAuctionDate(text string) *time.Time {
	m := dateRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	t, err := time.ParseInLocation("02/01/2006 15:04", m[1]+" "+m[2], saoPaulo)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
