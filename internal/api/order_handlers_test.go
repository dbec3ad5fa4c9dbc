package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/events"
)

type orderFixture struct {
	*testServer
	adminToken  string
	memberToken string
	memberID    string
	otherToken  string
	book        BookResponse
}

func setupOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	ts := setupTestServer(t)

	adminToken, _ := ts.register(t, "admin@example.com")
	memberToken, memberID := ts.register(t, "reader@example.com")
	otherToken, _ := ts.register(t, "other@example.com")

	author := ts.createAuthor(t, adminToken, "Ursula", "Le Guin")
	book := ts.createBook(t, adminToken, author.ID, "Earthsea")

	return &orderFixture{
		testServer:  ts,
		adminToken:  adminToken,
		memberToken: memberToken,
		memberID:    memberID,
		otherToken:  otherToken,
		book:        book,
	}
}

func (f *orderFixture) borrow(t *testing.T, token string) OrderResponse {
	t.Helper()
	resp := f.api.Post("/api/v1/orders/borrow/"+f.book.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decode[OrderResponse](t, resp).Data
}

func TestBorrow(t *testing.T) {
	f := setupOrderFixture(t)

	order := f.borrow(t, f.memberToken)
	assert.Equal(t, domain.LoanActive, order.Status)
	assert.Equal(t, f.memberID, order.UserID)
	assert.Regexp(t, `^order-\d+-`, order.Label)
	assert.Nil(t, order.ReturnedAt)

	resp := f.api.Get("/api/v1/books/" + f.book.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[BookResponse](t, resp).Data.Available)

	resp = f.api.Post("/api/v1/orders/borrow/"+f.book.ID, bearer(f.otherToken))
	require.Equal(t, http.StatusConflict, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "CONFLICT", env.Code)
	assert.Equal(t, "book currently unavailable", env.Error)

	assert.Equal(t, []events.Type{events.LoanBorrowed}, f.events.Types())
}

func TestBorrow_Errors(t *testing.T) {
	f := setupOrderFixture(t)

	resp := f.api.Post("/api/v1/orders/borrow/" + f.book.ID)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = f.api.Post("/api/v1/orders/borrow/book-ghost", bearer(f.memberToken))
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "book not found with id: book-ghost", decode[any](t, resp).Error)
}

func TestReturnBook(t *testing.T) {
	f := setupOrderFixture(t)
	order := f.borrow(t, f.memberToken)

	resp := f.api.Patch("/api/v1/orders/return/"+order.ID, bearer(f.otherToken))
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "You can only manage your own orders", decode[any](t, resp).Error)

	resp = f.api.Patch("/api/v1/orders/return/"+order.ID, bearer(f.memberToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	returned := decode[OrderResponse](t, resp).Data
	assert.Equal(t, domain.LoanReturned, returned.Status)
	assert.NotNil(t, returned.ReturnedAt)

	resp = f.api.Patch("/api/v1/orders/return/"+order.ID, bearer(f.memberToken))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "INVALID_STATE", env.Code)
	assert.Equal(t, "only active loans can be returned", env.Error)

	// The book is free again.
	f.borrow(t, f.otherToken)
}

func TestCancelOrder_ByAdmin(t *testing.T) {
	f := setupOrderFixture(t)
	order := f.borrow(t, f.memberToken)

	resp := f.api.Patch("/api/v1/orders/cancel/"+order.ID, bearer(f.adminToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	cancelled := decode[OrderResponse](t, resp).Data
	assert.Equal(t, domain.LoanCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ReturnedAt)

	resp = f.api.Patch("/api/v1/orders/cancel/"+order.ID, bearer(f.adminToken))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "only active loans can be cancelled", decode[any](t, resp).Error)

	resp = f.api.Patch("/api/v1/orders/cancel/order-ghost", bearer(f.adminToken))
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "order not found with id: order-ghost", decode[any](t, resp).Error)
}

func TestListOrders(t *testing.T) {
	f := setupOrderFixture(t)
	order := f.borrow(t, f.memberToken)

	resp := f.api.Get("/api/v1/orders", bearer(f.memberToken))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.api.Get("/api/v1/orders", bearer(f.adminToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	all := decode[ListOrdersResponse](t, resp).Data.Orders
	require.Len(t, all, 1)
	assert.Equal(t, order.ID, all[0].ID)
	require.NotNil(t, all[0].User)
	assert.Equal(t, "reader@example.com", all[0].User.Email)
	require.NotNil(t, all[0].Book)
	assert.Equal(t, "Earthsea", all[0].Book.Title)
	require.NotNil(t, all[0].Book.Author)
	assert.Equal(t, "Le Guin", all[0].Book.Author.LastName)

	resp = f.api.Get("/api/v1/orders/my-orders", bearer(f.memberToken))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[ListOrdersResponse](t, resp).Data.Orders, 1)

	resp = f.api.Get("/api/v1/orders/my-orders", bearer(f.otherToken))
	require.Equal(t, http.StatusOK, resp.Code)
	mine := decode[ListOrdersResponse](t, resp).Data.Orders
	assert.NotNil(t, mine)
	assert.Empty(t, mine)
}

func TestDeleteOrder(t *testing.T) {
	f := setupOrderFixture(t)
	order := f.borrow(t, f.memberToken)

	resp := f.api.Delete("/api/v1/orders/"+order.ID, bearer(f.memberToken))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.api.Delete("/api/v1/orders/"+order.ID, bearer(f.adminToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Order deleted", decode[MessageResponse](t, resp).Data.Message)

	resp = f.api.Get("/api/v1/books/" + f.book.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	book := decode[BookResponse](t, resp).Data
	assert.True(t, book.Available)
	assert.Nil(t, book.Status)

	resp = f.api.Delete("/api/v1/orders/"+order.ID, bearer(f.adminToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
