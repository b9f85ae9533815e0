package analysis

import "github.com/nidhogg/giffly/internal/provider"

const systemPrompt = `Ты помощник цветочного магазина. Проанализируй запрос покупателя и верни ТОЛЬКО JSON-объект без пояснений:
{
  "theme": "повод (свадьба, день рождения, юбилей...) или пустая строка",
  "type": "тип подарка (букет, композиция, корзина...) или пустая строка",
  "colors": ["цвета, которые просит покупатель"],
  "budget": "максимальная сумма в рублях числом или null",
  "special_requests": ["особые пожелания"],
  "keywords": ["ключевые слова для поиска товара в нижнем регистре"]
}
Не придумывай повод, если его нет в запросе.`

// buildRequest wraps the customer query in the analysis prompt.
func buildRequest(model, query string) *provider.ChatRequest {
	return &provider.ChatRequest{
		Model: model,
		Messages: []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		Temperature: 0.1,
		MaxTokens:   512,
		JSONMode:    true,
	}
}
