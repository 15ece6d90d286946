// Package prompt composes the system instructions that steer the model's
// output shape. Compose is a pure function: identical inputs produce
// byte-identical instruction blocks, which keeps it independently testable.
package prompt

import "strings"

// Contract selects which response shape the instructions emphasize.
type Contract int

const (
	// Plain requests conversational text with no structured-output rules.
	Plain Contract = iota
	// ProductList adds the strict product-listing JSON contract.
	ProductList
	// OrderHistory adds the strict order-history JSON contract.
	OrderHistory
	// OrderFlow adds every structured contract plus the authentication-gated
	// purchase protocol. This is what the chat loop uses.
	OrderFlow
)

const base = `You are a customer support assistant for an online store. You help customers browse products, check their order history, and place orders using the available tools.

Always use the tools to look up real data. Never invent products, prices, or orders.`

const productListRules = `When the customer asks to see or browse products, respond with ONLY a JSON object in exactly this shape, with no other text, no explanation, and no code fences:
{"type": "product_list", "products": [{"id": "<sku>", "name": "<name>", "price": <number>, "stock": <number>, "category": "<category>", "image": "<url>"}]}`

const orderHistoryRules = `When the customer asks about their past orders, respond with ONLY a JSON object in exactly this shape, with no other text, no explanation, and no code fences:
{"type": "order_history", "orders": [{"order_id": "<id>", "status": "<status>", "created_at": "<timestamp>", "items": [{"name": "<name>", "quantity": <number>}]}]}`

const purchaseRules = `Purchase workflow:
1. Browsing products requires no authentication.
2. A customer must be verified before placing an order. If an unverified customer wants to buy something, ask them to log in with their email and PIN using the login form. Do not attempt to verify them yourself.
3. Once the customer is verified and has chosen what to buy, respond with ONLY a JSON object in exactly this shape, with no other text and no code fences:
{"customer_id": "<customer id>", "order_details": [{"sku": "<sku>", "name": "<name>", "quantity": <number>}]}
4. The customer confirms by sending a message containing "Customer ID:" followed by their customer id and "Order details:" followed by the order items. When you receive such a confirmation message, extract the customer id and order details from it and call the order-creation tool with those exact values, then confirm the placed order to the customer in plain text.`

// Compose builds the system instruction block for the given contract. If
// identityHint is non-empty it is appended as a contextual fact so the model
// does not ask the customer to authenticate again within the run.
func Compose(contract Contract, identityHint string) string {
	sections := []string{base}

	switch contract {
	case ProductList:
		sections = append(sections, productListRules)
	case OrderHistory:
		sections = append(sections, orderHistoryRules)
	case OrderFlow:
		sections = append(sections, productListRules, orderHistoryRules, purchaseRules)
	}

	if identityHint != "" {
		sections = append(sections, "The customer is already verified. Their customer id is "+identityHint+". Do not ask them to log in again.")
	}

	return strings.Join(sections, "\n\n")
}

// Reinforcement is the short system reminder appended after tool results, so
// the model does not drift back into prose around the strict JSON shapes.
func Reinforcement() string {
	return `Remember: if your answer is a product listing, an order history, or an order confirmation, respond with ONLY the JSON object - no introduction, no commentary, no code fences.`
}
