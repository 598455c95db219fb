package extractor

import "fmt"

const recipeSchemaInstructions = `Output ONLY valid JSON (no markdown code blocks) with this structure:
{
  "title": "Recipe title in Korean, refined for clarity",
  "description": "Short description of the dish",
  "ingredients": [
    { "name": "Ingredient name", "amount": "Amount string" }
  ],
  "steps": [
    { "order": 1, "description": "Step 1 description" }
  ],
  "time": "Estimated cooking time (e.g. 15분)",
  "nutrition": {
    "calories": 500,
    "protein": "0g",
    "fat": "0g",
    "carbs": "0g"
  },
  "is_recipe": true
}

IMPORTANT:
1. If the content is NOT a cooking recipe (e.g. mukbang, vlog without a recipe, a simple review), set "is_recipe": false.
2. "calories" must be an integer estimate; use 500 if unsure.
3. Step "order" values start at 1 and increase.
4. Translate everything to Korean.`

func textPrompt(title, transcript string) string {
	return fmt.Sprintf(`You are a professional chef data assistant.
Analyze the following transcript of a cooking video titled %q and extract the recipe information.

Transcript:
%s

%s`, title, transcript, recipeSchemaInstructions)
}

func audioPrompt(title string) string {
	return fmt.Sprintf(`You are a professional chef data assistant.
Listen to the provided audio from a cooking video titled %q and extract the recipe information.

%s`, title, recipeSchemaInstructions)
}
