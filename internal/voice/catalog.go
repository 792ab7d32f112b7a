// Package voice holds the fixed speaker and language catalog exposed by the
// synthesis model, plus the mapping from OpenAI voice names onto it.
package voice

import "strings"

// Speakers is the enumerated set of voice identities the model supports.
var Speakers = []string{
	"Ryan",
	"Vivian",
	"Serena",
	"Dylan",
	"Eric",
	"Aiden",
	"Uncle_Fu",
	"Ono_Anna",
	"Sohee",
}

// Languages is the enumerated set of supported synthesis languages.
var Languages = []string{
	"English",
	"Chinese",
	"Japanese",
	"Korean",
	"German",
	"French",
	"Russian",
	"Portuguese",
	"Spanish",
	"Italian",
}

// DefaultSpeaker is used when a caller supplies no speaker or an unknown
// OpenAI voice name.
const DefaultSpeaker = "Ryan"

// DefaultLanguage is used for the OpenAI-compatible endpoint, which carries
// no language field.
const DefaultLanguage = "English"

var voiceMap = map[string]string{
	"alloy":   "Ryan",
	"echo":    "Vivian",
	"fable":   "Serena",
	"onyx":    "Dylan",
	"nova":    "Eric",
	"shimmer": "Aiden",
}

var speakerSet = toSet(Speakers)
var languageSet = toSet(Languages)

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ValidSpeaker reports whether name is a member of the speaker set.
func ValidSpeaker(name string) bool {
	_, ok := speakerSet[name]
	return ok
}

// ValidLanguage reports whether name is a member of the language set.
func ValidLanguage(name string) bool {
	_, ok := languageSet[name]
	return ok
}

// MapVoice resolves an OpenAI voice name to an internal speaker. Unknown
// names fall back to the default speaker, matching the upstream API.
func MapVoice(voice string) string {
	if speaker, ok := voiceMap[strings.ToLower(voice)]; ok {
		return speaker
	}
	return DefaultSpeaker
}

// Item describes one entry of the public voice listing.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List returns the public voice catalog: the OpenAI aliases followed by the
// native speaker names.
func List() []Item {
	return []Item{
		{ID: "alloy", Name: "Alloy", Description: "Versatile male voice"},
		{ID: "echo", Name: "Echo", Description: "Warm female voice"},
		{ID: "fable", Name: "Fable", Description: "Expressive female voice"},
		{ID: "onyx", Name: "Onyx", Description: "Deep male voice"},
		{ID: "nova", Name: "Nova", Description: "Energetic female voice"},
		{ID: "shimmer", Name: "Shimmer", Description: "Soft female voice"},
		{ID: "ryan", Name: "Ryan", Description: "Default male voice"},
		{ID: "vivian", Name: "Vivian", Description: "Female voice"},
		{ID: "serena", Name: "Serena", Description: "Female voice"},
		{ID: "dylan", Name: "Dylan", Description: "Male voice"},
		{ID: "eric", Name: "Eric", Description: "Male voice"},
		{ID: "aiden", Name: "Aiden", Description: "Male voice"},
		{ID: "uncle_fu", Name: "Uncle Fu", Description: "Male voice (Chinese)"},
		{ID: "ono_anna", Name: "Ono Anna", Description: "Female voice (Japanese)"},
		{ID: "sohee", Name: "Sohee", Description: "Female voice (Korean)"},
	}
}
