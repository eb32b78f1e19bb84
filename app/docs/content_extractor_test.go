package docs

import (
	"strings"
	"testing"
)

const decisionHTML = `<html>
<head><title>Decision - Car 16</title></head>
<body>
<nav><a href="/">Home</a> <a href="/documents">Documents</a></nav>
<article>
<h1>Decision - Car 16</h1>
<p>Document 7</p>
<p>Date 25 May 2025</p>
<p>Time 15:31</p>
<p>No / Driver 16 - Charles Leclerc</p>
<p>Reason Impeding car 44 at turn 1 during the qualifying session, as shown by video and telemetry evidence reviewed by the stewards.</p>
<p>The Stewards heard from the driver of Car 16 and the team representative, reviewed positional data, marshalling system data and in-car video evidence, and determined that the driver of Car 16 was on a slow lap when Car 44 approached on a push lap.</p>
<p>Competitors are reminded that they have the right to appeal certain decisions of the Stewards within the time limits specified in the International Sporting Code.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

func TestReadableText(t *testing.T) {
	text, err := ReadableText([]byte(decisionHTML), "https://www.fia.com/news/decision-car-16")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(text, "Time 15:31\n") {
		t.Errorf("Expected one block per line, got: %q", text)
	}

	metadata := ParseMetadata(text, "decision-car-16")
	if metadata.DocNumber != "7" {
		t.Errorf("Expected doc number 7, got %s", metadata.DocNumber)
	}
	if metadata.Date != "25 May 2025" || metadata.Time != "15:31" {
		t.Errorf("Expected date and time, got %q %q", metadata.Date, metadata.Time)
	}
	if metadata.DriverInfo != "16 – Charles Leclerc" {
		t.Errorf("Expected driver info, got %q", metadata.DriverInfo)
	}
	if !strings.HasPrefix(metadata.Reason, "Impeding car 44") {
		t.Errorf("Expected reason, got %q", metadata.Reason)
	}
}

func TestReadableText_Errors(t *testing.T) {
	if _, err := ReadableText(nil, "https://www.fia.com/"); err == nil {
		t.Error("Expected error for empty HTML")
	}
	if _, err := ReadableText([]byte(decisionHTML), "://bad"); err == nil {
		t.Error("Expected error for invalid page URL")
	}
}
