package script

import "strings"

// UncertaintyMarker is the token narrators read around unverified facts.
// The phonetic conversion must preserve every occurrence.
const UncertaintyMarker = "(unverified)"

const namePlaceholder = "{subject_name}"

// scriptPromptTemplate is the production narration prompt. The word budget,
// year-stamp counts, and callback structure are part of the downstream
// editing workflow's expectations; change them only together with that
// workflow.
const scriptPromptTemplate = `You are writing a 5-minute biography video for **{subject_name}**.

========================  GLOBAL STORY GUIDELINES  ========================
1.  WORD COUNT & PACE
   • 780–830 words (≈5 min @ 155 wpm).
2.  TENSE RULE
   • Action beats in historical-present ("he knocks," "she wins"); background may use past, **but never mix tenses in one sentence**.
3.  VOICE & TARGET DEMO
   • Confident "sports-doc storyteller": punchy, nostalgic, dry-witty.
   • Lean on era-flavored verbs & metaphors that resonate with 45- to 65-year-olds; **no Gen-Z slang**.
4.  DATES & AGES
   • **Use 6–9 explicit year stamps** total, spread out—**max one date OR one age per sentence**.
   • Reference the subject's age at least twice ("at 32," "now 47").
5.  SUSPENSE MOMENT
   • Around the 80–90 s mark, insert a naturally arising **question** that tees up tension; **do not label it** as a cliff-hanger.
6.  CALLBACK ENGINE
   • Choose a single tangible motif (prop, catch-phrase, vehicle). Mention it once early, then **exactly 3 humorous or poignant callbacks** later—each stronger than the last.
7.  EMOTIONAL TRIP-WIRE
   • End with a 1- or 2-sentence legacy reflection that references the motif and stirs quiet emotion. No outros, CTAs, or brand names.
8.  LANGUAGE MUSIC
   • Vary sentence lengths—staccato punch followed by a medium beat, then an occasional lyrical line.
9.  FACT DISCIPLINE
   • Append ` + UncertaintyMarker + ` immediately after any fact you cannot verify.
10. OUTPUT SANITATION
   • Narration only. No visuals, tables, scene headings, timelines, sound cues, or formatting notes beyond what is defined below.

========================  OUTPUT MARKDOWN FORMAT  ========================

**{subject_name} — 5-MINUTE BIO SCRIPT (~XXX words)**

**HOOK**
Fragment. Fragment. Fragment. And [surprise facet].
{subject_name}'s [metaphor or superlative tied to a signature role]. **[Imperative callback — verb-first, 2–4 words from an iconic prop / phrase / setting], and let's get rollin'.**

**BIO**
(Continuous paragraphs—birth to present-day epilogue; follow all guidelines above.)

=========================================================================

HOW TO PICK THE IMPERATIVE CALLBACK
• Must start with a verb ("Spin the rotor," "Prime the proton pack," "Dust off the Stetson").
• 2 – 4 words, no pronouns, ends with a comma so it flows: "…[callback], and let's get rollin'."
• Anchor it to the subject's most recognizable prop, vehicle, or genre.

REMINDER CHECKLIST (self-verify before output)
☐ 780–830 words
☐ 6–9 year stamps, never >1 per sentence
☐ ≥2 age mentions
☐ Natural tension-raising question ~80-90 s
☐ Single motif with 3 callbacks
☐ Imperative callback flows into "…and let's get rollin'."
☐ Emotional legacy close, no outros or brand plugs
☐ Only spoken narration appears in final output`

// phoneticPromptTemplate converts the script for a young narrator. The
// conversion must change nothing but hard-to-pronounce proper nouns.
const phoneticPromptTemplate = `You are converting a biography script for a 17-year-old narrator who is an excellent reader but lacks life experience with uncommon proper nouns (names, places, businesses, etc.).

TASK: Convert proper nouns that meet ALL these criteria:
1. A high school senior likely hasn't encountered it before
2. Sounding it out would NOT produce the correct pronunciation
3. It's a proper noun (person, place, business, group, etc.)

CONVERSION RULES:
- Replace ONLY the proper nouns that meet the above criteria with phonetic spelling
- Write phonetic versions as a 12-year-old would read them
- Use simple letter combinations, NO dashes or special characters
- Keep EVERYTHING else exactly the same (punctuation, formatting, structure)
- Common names like "Tom", "New York", "Hollywood" should NOT be changed
- Focus on: foreign names, historical figures, uncommon place names, specialized terms

EXAMPLES:
- "Saoirse Ronan" → "Seersha Ronan"
- "Joaquin Phoenix" → "Wahkeen Phoenix"
- "Gal Gadot" → "Gal Gahdoe"
- "Lupita Nyong'o" → "Loopeeta Nyongo"
- "Versailles" → "Vairsigh"
- "Leicester" → "Lester"
- "Siobhan" → "Shivawn"

ORIGINAL SCRIPT:
{script}

OUTPUT: The exact same script with ONLY the necessary proper nouns converted to phonetic spelling. Do not add any explanations or notes.`

// ScriptPrompt renders the narration prompt for a subject.
func ScriptPrompt(displayName string) string {
	return strings.ReplaceAll(scriptPromptTemplate, namePlaceholder, strings.TrimSpace(displayName))
}

// PhoneticPrompt renders the phonetic conversion prompt for a script.
func PhoneticPrompt(scriptText string) string {
	return strings.Replace(phoneticPromptTemplate, "{script}", scriptText, 1)
}
