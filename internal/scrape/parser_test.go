package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

const incidentTableHTML = `<html><body>
<table id="gvIncidents">
<tr><th>Details</th><th>No.</th><th>Time</th><th>Type</th><th>Location</th><th>Location Desc.</th><th>Area</th></tr>
<tr><td>Details</td><td>0042</td><td>10:15 AM</td><td>Trfc Collision-No Inj</td><td>I-5 NB at Main St</td><td>San Diego</td><td>VEH BLKG #1 LN | TOW ENRT</td></tr>
<tr><td>Details</td><td>0043</td><td>10:22 AM</td><td>Traffic Hazard</td><td>SR-94 EB</td><td>Lemon Grove</td><td>DEBRIS IN RDWY | NEG BLOCKING</td></tr>
<tr><td>Details</td><td>0044</td><td>10:30 AM</td><td>Animal Control</td><td>Elm St</td><td>El Cajon</td><td></td></tr>
<tr><td>Details</td><td>0045</td></tr>
</table>
</body></html>`

func TestParseIncidents(t *testing.T) {
	incidents, err := ParseIncidents(strings.NewReader(incidentTableHTML))
	require.NoError(t, err)

	// The short row is dropped, the other three survive.
	require.Len(t, incidents, 3)

	first := incidents[0]
	assert.Equal(t, "0042", first.ID)
	assert.Equal(t, "10:15 AM", first.Time)
	assert.Equal(t, "Trfc Collision-No Inj", first.Type)
	assert.Equal(t, "I-5 NB at Main St", first.Location)
	assert.Equal(t, "San Diego", first.Area)
	assert.Equal(t, "VEH BLKG #1 LN | TOW ENRT", first.Details)
}

func TestParseIncidentsNoTable(t *testing.T) {
	incidents, err := ParseIncidents(strings.NewReader("<html><body><p>No traffic incidents</p></body></html>"))

	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestRelevanceFlag(t *testing.T) {
	incidents, err := ParseIncidents(strings.NewReader(incidentTableHTML))
	require.NoError(t, err)

	assert.True(t, incidents[0].IsRelevant, "collision on I-5 is relevant")
	assert.True(t, incidents[1].IsRelevant, "hazard on SR-94 is relevant")
	assert.False(t, incidents[2].IsRelevant, "animal control on a surface street is not")
}

func TestLaneBlockageClassification(t *testing.T) {
	incidents, err := ParseIncidents(strings.NewReader(incidentTableHTML))
	require.NoError(t, err)

	assert.Equal(t, domain.BlockageBlocking, incidents[0].LaneBlockage.Status)
	assert.Equal(t, []string{"VEH BLKG #1 LN"}, incidents[0].LaneBlockage.Details)

	// Resolved keyword wins over blockage keywords in the same details.
	assert.Equal(t, domain.BlockageResolved, incidents[1].LaneBlockage.Status)

	assert.Equal(t, domain.BlockageUnknown, incidents[2].LaneBlockage.Status)
}

func TestParseLaneBlockageNoKeywords(t *testing.T) {
	lb := parseLaneBlockage("UNITS ENRT | 1039 TOW")
	assert.Equal(t, domain.BlockageNone, lb.Status)
	assert.Empty(t, lb.Details)
}
