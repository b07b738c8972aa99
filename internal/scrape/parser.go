package scrape

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

// Column layout of the CHP incident table. Column 0 is the "Details" link.
const (
	colID = iota + 1
	colTime
	colType
	colLocation
	colArea
	colDetails
	minCells = 7
)

var relevantCategories = []string{
	"Trfc Collision", "Traffic Hazard", "Car Fire", "Vehicle Fire",
	"Traffic Break", "Road Blocked", "Fatality", "Hit and Run",
	"Hit & Run", "SIG Alert", "Sig Alert", "Report of Fire",
}

var highwayIndicators = []string{
	"I-", "I5", "I8", "I10", "I15", "I40", "I80", "I805", "I215",
	"SR-", "STATE ROUTE", "STATE RT", "US-", "US ", "US HIGHWAY",
	"HWY", "HIGHWAY", "FREEWAY", "INTERSTATE", "CONNECTOR", "CONN",
}

var resolvedKeywords = []string{"NEG BLOCKING", "NEG BLK", "CLEARED", "RESOLVED"}

var blockageKeywords = []string{
	"BLKG", "BLOCKING", "#1 LN", "SLOW LN", "MIDDLE LN",
	"RHS", "CD", "LANE", "LN", "VEH IN", "DEBRIS",
}

// ParseIncidents extracts incident rows from the page HTML. Rows with fewer
// than the expected number of cells are dropped rather than failing the
// whole fetch. A page without an incident table yields an empty set: the
// CHP page renders no table when a center has no active incidents.
func ParseIncidents(r io.Reader) ([]domain.Incident, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	incidents := []domain.Incident{}
	doc.Find("table").First().Find("tr").Each(func(row int, tr *goquery.Selection) {
		if row == 0 {
			return // header
		}
		cells := tr.Find("td")
		if cells.Length() < minCells {
			return
		}

		text := func(col int) string {
			return strings.TrimSpace(cells.Eq(col).Text())
		}

		inc := domain.Incident{
			ID:       text(colID),
			Time:     text(colTime),
			Type:     text(colType),
			Location: text(colLocation),
			Area:     text(colArea),
			Details:  text(colDetails),
		}
		if inc.ID == "" {
			return
		}

		inc.IsRelevant = isRelevant(inc)
		inc.LaneBlockage = parseLaneBlockage(inc.Details)
		incidents = append(incidents, inc)
	})

	return incidents, nil
}

// isRelevant flags incidents of an alert-worthy category on a highway.
func isRelevant(inc domain.Incident) bool {
	category := false
	for _, cat := range relevantCategories {
		if strings.Contains(inc.Type, cat) {
			category = true
			break
		}
	}
	if !category {
		return false
	}

	location := strings.ToUpper(inc.Location)
	for _, indicator := range highwayIndicators {
		if strings.Contains(location, indicator) {
			return true
		}
	}
	return false
}

// parseLaneBlockage classifies the free-text details column. A resolved
// keyword anywhere wins over blockage keywords.
func parseLaneBlockage(details string) domain.LaneBlockage {
	if details == "" {
		return domain.LaneBlockage{Status: domain.BlockageUnknown}
	}

	var blocking []string
	for _, line := range strings.Split(details, " | ") {
		upper := strings.ToUpper(line)

		for _, resolved := range resolvedKeywords {
			if strings.Contains(upper, resolved) {
				return domain.LaneBlockage{Status: domain.BlockageResolved, Details: []string{line}}
			}
		}

		for _, keyword := range blockageKeywords {
			if strings.Contains(upper, keyword) {
				blocking = append(blocking, line)
				break
			}
		}
	}

	if len(blocking) > 0 {
		return domain.LaneBlockage{Status: domain.BlockageBlocking, Details: blocking}
	}
	return domain.LaneBlockage{Status: domain.BlockageNone}
}
