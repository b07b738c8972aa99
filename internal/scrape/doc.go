// Package scrape fetches and parses the CHP Traffic.aspx incident feed.
//
// The page is an ASP.NET form: selecting a communication center requires a
// GET to harvest the hidden form fields (viewstate, validation tokens)
// followed by a POST with the center selection. The incident table in the
// response is parsed into domain.Incident records and enriched with
// highway-relevance and lane-blockage classification.
package scrape
