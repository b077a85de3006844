package storyboard

import (
	"strconv"
	"strings"
)

// shotPromptTemplate decomposes the narration into a shot list. The model
// returns script spans and prompts only; timings are computed locally from
// word counts so they stay deterministic.
const shotPromptTemplate = `You are a senior storyboard + multimodal-prompt architect.

TASK
From the SCRIPT below, create a shot list (≥ {min_shots} shots) for a YouTube biography aimed at men 55–70.
• Shots 1-6 = HOOK stingers (short and punchy).
• Remaining shots = BIO micro-shots.
• Break whenever the idea, location, or era shifts.
• If the total is < {min_shots}, subdivide until you reach ≥ {min_shots}.
• **Every word** of the SCRIPT must appear verbatim in exactly one **script** field—no overlap, no omissions.

FACE & LIKENESS RULE
• It's best if most AI generated images are not of the subject. But if it's best for the human subject to be part of the AI generated image, the images must **avoid a full, clearly recognizable adult face** of the subject. Use silhouettes, back-of-head, side-profile, oblique angles, heavy rim-light, or foreground objects that obscure facial detail.
• If the subject needs to be depicted **under 18**, you may specify age ("young 6-year-old", "teenage") to guide style, since likeness risk is lower.
• Do **not** include "portrait," "close-up," or front-facing facial terms for adult shots.

OUTPUT
Return **one JSON array**. Each element must use **exactly** these keys:

{
  "shot": <integer>,                  // sequential, starting at 1
  "script": "<verbatim script chunk>",// full chunk this shot covers
  "image_search": "<5-8 keyword phrase>",
  "image_prompt": "<≈35-word cinematic image-generation prompt for a 16:9 frame, no text or watermarks>",
  "video_prompt": "<1-2 vivid sentences for a 5-second loop>"
}

COLUMN GUIDELINES
• image_search – subject/era/context + medium (e.g., "Michael Landon javelin 1954 black-and-white photo").
• image_prompt – craft cinematic, dramatic, eye-locking imagery:
– Start with a camera move (low-angle dolly, crane, push-in, Dutch tilt, macro, aerial, etc.).
– State lens / format (35 mm anamorphic, 70 mm IMAX, f/1.8 bokeh, macro 100 mm).
– Specify lighting & mood (golden-hour rim light, chiaroscuro, neon-noir, tungsten practicals, stormy low-key).
– Add color / film stock (Kodachrome, Technicolor, VHS fuzz, Fuji Velvia).
– Include composition hooks (rule-of-thirds silhouette, leading lines, layered depth, dramatic negative space).
– Keep faces obscured unless the subject is ≤ 18 (use age labels as allowed).
• video_prompt – describe the 5-s loop: motion path, atmosphere, overlays (film grain, scan-lines), optional sound cue.
• Vary vocabulary; avoid repeating identical words across prompts.
• Output no headings, commentary, or extra keys—just the pure JSON array.

SCRIPT TO PROCESS:
{script_content}`

// musicPromptTemplate produces the three-style music brief.
const musicPromptTemplate = `You are an elite AI music supervisor for fast-paced YouTube biography videos (target audience: men 45 – 65, mostly U.S./U.K.).

##################  TASK  ##################
1. READ the full SCRIPT immediately following the delimiter.
2. REASON deeply:
   • Identify the subject's peak decades, signature works, core persona, and dominant moods.
   • Note pacing clues (hook length, montage density, emotional highs/lows).
3. DESIGN exactly **three DISTINCT Suno "Custom-mode" instrumental prompts** that:
   • Feel naturally upbeat for narration (≈100-120 BPM unless the script clearly demands another tempo).
   • Remain **100 % instrumental** (no vocals).
   • Use clear structural tags **[Intro] [Verse] [Chorus] [Bridge] [Outro]**, total ≤120 s, loop-friendly, with open midrange for voice-over.
   • Include a **track title, BPM, key, and concise genre label**—written *once* at the start of each prompt.
   • Style requirements:
     – **Prompt 1:** strong rock influence drawn from the decade of rock that best fits the subject's peak era.
     – **Prompt 2:** moderate rock influence from whichever decade suits the subject.
     – **Prompt 3:** any other style you deem most effective for the script.

################  OUTPUT FORMAT  ################
Return **one JSON array** and nothing else.
Each of the three objects must contain **exactly one key, ` + "`prompt`" + `**, whose value is a **single-line string (no newline characters)** formatted like this:

{
"prompt": "<Track Title> | <BPM> BPM | <Key> | <Genre Label> | [Intro] … [Outro]"
}

Formatting rules for each ` + "`prompt`" + ` value
• Separate the four header items with the pipe symbol (|).
• Write musical keys in full words (e.g., "E minor", never "E-min").
• Do **not** repeat BPM, key, or genre later in the prompt.
• Avoid abbreviations that could be misread (e.g., "E-min" can be parsed as "Eminem").
• Keep everything on one line—no newlines.

SCRIPT TO PROCESS:
{script_content}`

// ShotPrompt renders the shot decomposition prompt.
func ShotPrompt(scriptText string, minShots int) string {
	out := strings.ReplaceAll(shotPromptTemplate, "{min_shots}", strconv.Itoa(minShots))
	return strings.Replace(out, "{script_content}", scriptText, 1)
}

// MusicPrompt renders the music brief prompt.
func MusicPrompt(scriptText string) string {
	return strings.Replace(musicPromptTemplate, "{script_content}", scriptText, 1)
}
