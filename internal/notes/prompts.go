package notes

// DefaultSummaryPrompt is used when no summary prompt file is configured.
const DefaultSummaryPrompt = `You are an assistant that writes detailed summaries of tabletop RPG sessions.

Analyse the transcript and write a long, engaging account of what happened.

Instructions:
1. Write in narrative prose, like a short story.
2. Convey the atmosphere of the session.
3. Highlight important moments, serious and humorous alike.
4. The summary should be at least 400 to 500 words.
5. Capture every relevant detail.

Output only the summary, without a title or further commentary.`

// DefaultDetailsPrompt is used when no details prompt file is configured.
const DefaultDetailsPrompt = `You are an assistant that extracts structured information from tabletop RPG sessions.

Analyse the summary and transcript and extract the session title, the main
events, important NPCs, visited locations, relevant items, memorable quotes,
hooks for the next session, and image and video prompt suggestions in English.

Be precise and thorough.`

// detailsSchema is appended to every details prompt.
const detailsSchema = `Respond with a single JSON object and nothing else, using exactly these keys:
{"title": string, "events": [string], "npcs": [string], "locations": [string],
 "items": [string], "quotes": [string], "hooks": [string], "images": [string],
 "videos": [string]}`
