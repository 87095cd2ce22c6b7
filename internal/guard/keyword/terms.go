package keyword

// DenyTerms is the curated vocabulary that rejects a prompt outright:
// NSFW, violence, hate, fraud, and minor-related terms. Checked before the
// allow list so a prompt containing both is always denied.
func DenyTerms() []string {
	return []string{
		// NSFW
		"nude", "naked", "sex", "sexual", "porn", "pornography", "xxx",
		"explicit", "nsfw",
		// Violence and gore
		"kill", "murder", "suicide", "hurt", "blood", "gore", "violent",
		"violence", "weapon", "gun", "knife attack", "bomb",
		// Hate
		"hate", "racist", "slur", "nazi",
		// Fraud and sensitive data
		"scam", "fraud", "credit card", "ssn",
		// Minors
		"child", "minor", "kid",
	}
}

// AllowTerms is the food lexicon: a hit short-circuits semantic scoring with
// a decisive allow. Only concrete food items, meals, cooking terms, and food
// venues belong here; generic adjectives do not.
func AllowTerms() []string {
	return []string{
		// Common dishes
		"pizza", "burger", "pasta", "sandwich", "salad", "soup", "sushi",
		"taco", "burrito", "curry", "stir fry", "noodles", "ramen",
		"dumpling", "spring roll",
		// Meals
		"breakfast", "lunch", "dinner", "brunch", "snack", "appetizer",
		"dessert",
		// Baked goods and proteins
		"cake", "bread", "cookie", "pie", "pastry", "muffin", "donut",
		"croissant", "steak", "chicken", "beef", "pork", "lamb", "fish",
		"seafood", "shrimp", "crab", "lobster",
		// Staples and produce
		"rice", "quinoa", "noodle", "potato", "fries", "vegetable", "fruit",
		"apple", "banana", "orange", "strawberry", "grape", "tomato",
		"lettuce", "onion", "garlic", "carrot", "broccoli", "spinach",
		// Beverages
		"coffee", "tea", "juice", "smoothie", "milkshake", "wine", "beer",
		// Cooking terms
		"recipe", "cooking", "baking", "grilling", "roasting", "frying",
		"steaming", "boiling",
		// Food context
		"restaurant", "cafe", "bakery", "menu", "chef", "cuisine", "dish",
		"meal", "food", "ingredients", "plating",
	}
}
