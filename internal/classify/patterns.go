package classify

import "strings"

// builtinPatterns is the hand-curated fallback table covering the
// historically stable prompt types. Each entry carries a few short
// substrings that discriminate its type; one hit is enough. Table order is
// significant: the first type reaching a hit wins.
//
// TODO: regenerate the native_action_selector entry once the upstream
// template's "expect at" typo is fixed; both spellings are matched until
// then.
var builtinPatterns = []struct {
	label    string
	patterns []string
}{
	{"dialogue_response", []string{
		"you are roleplaying as",
		"remain completely in character and speak as they would",
	}},
	{"player_dialogue", []string{
		"you are roleplaying as",
		"you are reacting verbally to a",
	}},
	{"player_thoughts", []string{
		"you are roleplaying as",
		"you are thinking to yourself about the current situation",
	}},
	{"gamemaster_action_selector", []string{
		"you are the gamemaster ai for skyrim",
		"acting like a tabletop dungeon master",
	}},
	{"evaluate_mood", []string{
		"you are an ai mood analyzer for skyrim",
		"determining the emotional state of npcs",
	}},
	{"generate_search_query", []string{
		"you are a memory search query generator",
		"generate a search query optimized for semantic similarity",
	}},
	{"dialogue_speaker_selector", []string{
		"you are deciding which single skyrim npc should speak next",
		"identify the npc who would naturally speak next",
	}},
	{"native_action_selector", []string{
		"you are an expert at determining what action should accompany",
		"you are an expect at determining what action should accompany",
	}},
	{"memory_builder", []string{
		"you are an ai assistant that summarizes game events into memories",
		"create personalized, first-person memories",
		"you are an expert on the elder scrolls universe",
	}},
	{"evaluate_memory_relevance", []string{
		"you are an ai assistant that analyzes events in the game skyrim",
		"determine which ones are relevant to form memories",
	}},
	{"mood_evaluator", []string{
		"you are an ai assistant that analyzes an npc's recent experiences",
		"determine their current mood",
	}},
	{"character_profile_update", []string{
		"you are an expert at updating character profiles for npcs",
		"update the existing character bio",
	}},
	{"dynamic_bio_update", []string{
		"you are an expert at updating character biographies",
		"based on recent events and character development",
	}},
	{"player_dialogue_target_selector", []string{
		"you are an ai decision-maker for skyrim",
		"determining which npcs the player is addressing",
	}},
	{"native_dialogue_transformer", []string{
		"your task is to transform dialogue to make it more immersive",
		"natural, and fitting for",
	}},
}

// matchPatterns counts builtin-pattern hits per type within the prefix
// window; the first type with at least one hit wins.
func matchPatterns(prefix string) (string, bool) {
	for _, entry := range builtinPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(prefix, pattern) {
				return entry.label, true
			}
		}
	}
	return "", false
}
