package orchestrator

import (
	"fmt"
	"strings"
)

var actionItems = []string{
	"**Week 1-2**: Validate assumptions with target customers (from Strategy)",
	"**Week 3-4**: Set up technical infrastructure (from Technical)",
	"**Week 4-6**: Begin pre-launch marketing activities (from Marketing)",
	"**Month 2**: Start MVP development",
	"**Month 3**: Beta testing and launch preparation",
}

const (
	reportHeader = "# 🚀 COMPREHENSIVE STARTUP ANALYSIS\n## Generated by AI Co-Founder Team\n"
	reportRule   = "\n---\n\n"
	reportFooter = "*This report was generated by a multi-agent AI system where each agent built upon the insights of previous agents to create a cohesive, unified strategy.*\n"
)

// Compile assembles the final report. The idea and the three stage outputs
// are inserted verbatim, in pipeline order; everything else is fixed text.
func Compile(idea, strategy, technical, marketing string) string {
	var b strings.Builder

	b.WriteString(reportHeader)
	b.WriteString(reportRule)

	b.WriteString("## 📋 STARTUP IDEA\n")
	b.WriteString(idea)
	b.WriteString("\n")
	b.WriteString(reportRule)

	section(&b, "## 🎯 BUSINESS STRATEGY ANALYSIS", "### By Strategy Agent (CEO)", strategy)
	section(&b, "## 💻 TECHNICAL ARCHITECTURE & PLAN", "### By Technical Agent (CTO)", technical)
	section(&b, "## 📢 MARKETING STRATEGY & GO-TO-MARKET", "### By Marketing Agent (CMO)", marketing)

	b.WriteString("## ✅ NEXT STEPS & ACTION ITEMS\n\n")
	b.WriteString("Based on the collaborative analysis above, here are the immediate priorities:\n\n")
	for i, item := range actionItems {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	b.WriteString(reportRule)

	b.WriteString(reportFooter)
	return b.String()
}

// ActionItems returns the fixed next steps that close every report.
func ActionItems() []string {
	return append([]string(nil), actionItems...)
}

func section(b *strings.Builder, title, byline, body string) {
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(byline)
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(reportRule)
}
