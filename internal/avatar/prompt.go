package avatar

import "badge-kiosk-backend/internal/models"

const basePrompt = `Convert the provided portrait into a high-quality Keep the likeness and recognizable features.
Place the subject inside a perfect circular crop and must no stroke or border or shadow.
Make the background fully transparent outside the portrait.
No text, no extra elements, only the single character's face and shoulders inside the circle.`

const (
	photoShootPrompt = "3D anime-style character.\n" + basePrompt

	animePrompt = "Create an image in a detailed anime aesthetic: expressive eyes, smooth cel-shaded coloring, and clean linework. " +
		"Emphasize emotion and character presence, with a sense of motion or atmosphere typical of anime scenes. \n" + basePrompt

	glam80sPrompt = "Create a selfie styled like a cheesy 1980s mall glamour shot, foggy soft lighting, teal and magenta lasers in the background, " +
		"feathered hair, shoulder pads, portrait studio vibes, ironic 'glam 4 life' caption. \n" + basePrompt
)

// Prompt returns the generation prompt for a style. Unknown styles get the 80s-Glam prompt.
func Prompt(style models.AvatarStyle) string {
	switch style {
	case models.StylePhotoShoot:
		return photoShootPrompt
	case models.StyleAnime:
		return animePrompt
	case models.StyleGlam80s:
		return glam80sPrompt
	default:
		return glam80sPrompt
	}
}
