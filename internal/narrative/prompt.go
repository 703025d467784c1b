package narrative

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/verdict/internal/alert"
	"github.com/linnemanlabs/verdict/internal/attribution"
	"github.com/linnemanlabs/verdict/internal/classify"
)

const systemPrompt = "You are an expert SOC analyst explaining security alerts."

// promptTopFeatures bounds how many contributing factors go into the prompt.
const promptTopFeatures = 5

// buildPrompt assembles the structured explanation prompt from the verdict,
// the probability breakdown, the top contributing factors, and a fixed subset
// of raw alert fields.
func buildPrompt(pred *classify.Prediction, attr *attribution.Attribution, al *alert.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a SOC (Security Operations Center) analyst explaining a security alert classification to a colleague.

ALERT CLASSIFICATION:
- Verdict: %s
- Confidence: %.0f%%

PROBABILITY BREAKDOWN:
- Benign: %.0f%%
- Suspicious: %.0f%%
- Malicious: %.0f%%

TOP CONTRIBUTING FACTORS:
%s

ALERT DETAILS:
%s

INSTRUCTIONS:
Write a clear, professional explanation (3-4 sentences) that:
1. States the verdict and confidence level
2. Explains the 2-3 most important factors that led to this decision
3. Recommends a specific action:
   - For MALICIOUS: "Investigate immediately" or "Escalate to incident response"
   - For SUSPICIOUS: "Monitor closely" or "Investigate when possible"
   - For BENIGN: "Mark as false positive" or "No action required"
4. Uses SOC terminology, not ML jargon

Keep it concise, actionable, and write as if YOU are the analyst making the call. Avoid phrases like "the model thinks" or "AI analysis shows".`,
		strings.ToUpper(pred.Verdict),
		pred.Confidence*100,
		pred.Probabilities["benign"]*100,
		pred.Probabilities["suspicious"]*100,
		pred.Probabilities["malicious"]*100,
		formatFactors(attr),
		formatAlertSummary(al),
	)

	return b.String()
}

func formatFactors(attr *attribution.Attribution) string {
	if attr == nil || len(attr.Top) == 0 {
		return "- none identified"
	}

	var lines []string
	for i, f := range attr.Top {
		if i == promptTopFeatures {
			break
		}
		direction := "decreases"
		if f.Direction == attribution.IncreasesRisk {
			direction = "increases"
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s (%s risk, %.1f%% contribution)",
			i+1, f.HumanName, formatValue(f.Value), direction, f.Contribution))
	}
	return strings.Join(lines, "\n")
}

// formatValue renders a feature value without trailing float noise for
// whole numbers and 0/1 indicators.
func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func formatAlertSummary(al *alert.Alert) string {
	if al == nil {
		return "- not available"
	}
	lines := []string{
		fmt.Sprintf("- Timestamp: %s", al.Timestamp.Format("2006-01-02T15:04:05")),
		fmt.Sprintf("- Source IP: %s", al.SourceIP),
		fmt.Sprintf("- Source Country: %s", al.SourceCountry),
		fmt.Sprintf("- Destination IP: %s", al.DestinationIP),
		fmt.Sprintf("- Destination Port: %d", al.DestinationPort),
		fmt.Sprintf("- Protocol: %s", al.Protocol),
		fmt.Sprintf("- Failed Login Attempts: %d", al.FailedLoginAttempts),
		fmt.Sprintf("- Process Executed: %s", al.ProcessExecuted),
		fmt.Sprintf("- Data Volume (MB): %.2f", al.DataVolumeMB),
	}
	return strings.Join(lines, "\n")
}
