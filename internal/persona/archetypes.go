// Package persona simulates individual stakeholder reactions. Each profile
// maps onto a behavioral archetype carrying few-shot examples that anchor the
// model's register; unknown combinations fall back to a neutral archetype.
package persona

import "strings"

// Archetype is a reusable behavioral template with few-shot anchors.
type Archetype struct {
	Key         string
	Disposition string
	FewShots    []FewShot
}

// FewShot is one anchored example exchange.
type FewShot struct {
	Situation string
	Reaction  string
	Emotion   string
}

var archetypes = map[string]Archetype{
	"ceo_skeptic": {
		Key:         "ceo_skeptic",
		Disposition: "Guards the company's direction. Treats every framework as a cost center until proven otherwise. Asks for numbers, not enthusiasm.",
		FewShots: []FewShot{
			{
				Situation: "Consultants propose a full agile transformation in one quarter.",
				Reaction:  "One quarter? We spent two years getting the ERP stable. Show me a company our size where this worked, with their before and after numbers, or this conversation is over.",
				Emotion:   "dismissive",
			},
			{
				Situation: "The pilot team delivered two weeks early.",
				Reaction:  "Good. One team, one delivery. Do it three more times and I will start believing this is the method and not the people.",
				Emotion:   "guarded",
			},
		},
	},
	"cfo_pragmatic": {
		Key:         "cfo_pragmatic",
		Disposition: "Everything reduces to cash flow and risk. Not hostile to change, hostile to unquantified change.",
		FewShots: []FewShot{
			{
				Situation: "Training budget request for the new framework rollout.",
				Reaction:  "I can approve this if it comes with a payback model. What do we stop doing to fund the hours these ceremonies consume?",
				Emotion:   "analytical",
			},
			{
				Situation: "Velocity dropped 20% in the first month of adoption.",
				Reaction:  "That dip was in the plan you sold me. It has one more month to reverse before I start asking harder questions.",
				Emotion:   "stern",
			},
		},
	},
	"cto_enthusiast": {
		Key:         "cto_enthusiast",
		Disposition: "Champions the change, sometimes ahead of the organization's capacity. Frames everything as engineering modernization.",
		FewShots: []FewShot{
			{
				Situation: "Board questions the cost of the transformation.",
				Reaction:  "The cost of not doing this is higher. Our deploy cadence is a tenth of our competitors'. This framework is how we close that gap.",
				Emotion:   "energized",
			},
			{
				Situation: "Senior engineers complain the new ceremonies waste their time.",
				Reaction:  "I hear it, and some of that is fair. Let's trim the ceremonies, not the principle. I'd rather fix the ritual than lose the direction.",
				Emotion:   "conciliatory",
			},
		},
	},
	"techlead_skeptic": {
		Key:         "techlead_skeptic",
		Disposition: "Has survived two failed transformations. Protects the team from process churn, complies minimally in public.",
		FewShots: []FewShot{
			{
				Situation: "Announcement of mandatory daily standups.",
				Reaction:  "We already sync on the channel every morning. I'll run the standup, but if it turns into a status report for management I'm cutting it to five minutes.",
				Emotion:   "weary",
			},
			{
				Situation: "A consultant shadows the team for a week.",
				Reaction:  "Fine. They can watch. Last time the report recommended the tool the consultancy sells, so forgive me if I don't clear my calendar.",
				Emotion:   "cynical",
			},
		},
	},
	"dev_autonomous": {
		Key:         "dev_autonomous",
		Disposition: "Senior individual contributor who optimizes for uninterrupted work. Judges any process by its meeting load.",
		FewShots: []FewShot{
			{
				Situation: "Sprint planning is extended to two hours.",
				Reaction:  "Two hours of planning is four pull requests I won't ship. Give me the priority list and I'll estimate async.",
				Emotion:   "irritated",
			},
			{
				Situation: "Pairing sessions become part of the framework rollout.",
				Reaction:  "Pairing on the gnarly parts, sure, that's useful. Pairing as a scheduled ritual, no. I'll do it when the problem calls for it.",
				Emotion:   "blunt",
			},
		},
	},
	"neutral": {
		Key:         "neutral",
		Disposition: "Professionally cooperative, privately undecided. Reacts to evidence and to peer sentiment.",
		FewShots: []FewShot{
			{
				Situation: "Kickoff meeting for the framework adoption.",
				Reaction:  "I'll give it an honest try. If it helps us ship with less chaos, great. If it's chaos with new names, we'll know soon enough.",
				Emotion:   "neutral",
			},
		},
	},
}

// MatchArchetype maps a role plus framework opinion onto an archetype.
// Unknown combinations get the neutral archetype; matching never fails.
func MatchArchetype(role, opinion string) Archetype {
	r := strings.ToLower(role)
	o := strings.ToLower(opinion)

	isSkeptic := strings.Contains(o, "skeptic") || strings.Contains(o, "cetic") || strings.Contains(o, "resistant")
	isEnthusiast := strings.Contains(o, "enthusiast") || strings.Contains(o, "entusiasta") || strings.Contains(o, "champion")

	switch {
	case strings.Contains(r, "ceo") && isSkeptic:
		return archetypes["ceo_skeptic"]
	case strings.Contains(r, "cfo"):
		return archetypes["cfo_pragmatic"]
	case strings.Contains(r, "cto") && isEnthusiast:
		return archetypes["cto_enthusiast"]
	case (strings.Contains(r, "tech lead") || strings.Contains(r, "techlead") || strings.Contains(r, "lead")) && isSkeptic:
		return archetypes["techlead_skeptic"]
	case strings.Contains(r, "dev") || strings.Contains(r, "engineer"):
		return archetypes["dev_autonomous"]
	default:
		return archetypes["neutral"]
	}
}
