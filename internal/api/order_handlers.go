package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/service"
)

func (s *Server) registerOrderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "borrowBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/orders/borrow/{bookId}",
		Summary:     "Borrow book",
		Description: "Creates an active loan of the book for the caller",
		Tags:        []string{"Orders"},
		Security:    bearerSecurity,
	}, s.handleBorrowBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/orders/return/{orderId}",
		Summary:     "Return book",
		Description: "Marks an active loan as returned (owner or admin)",
		Tags:        []string{"Orders"},
		Security:    bearerSecurity,
	}, s.handleReturnBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelOrder",
		Method:      http.MethodPatch,
		Path:        "/api/v1/orders/cancel/{orderId}",
		Summary:     "Cancel order",
		Description: "Marks an active loan as cancelled (owner or admin)",
		Tags:        []string{"Orders"},
		Security:    bearerSecurity,
	}, s.handleCancelOrder)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOrders",
		Method:      http.MethodGet,
		Path:        "/api/v1/orders",
		Summary:     "List orders",
		Description: "Returns every loan, newest first (admin only)",
		Tags:        []string{"Orders"},
		Security:    bearerSecurity,
	}, s.handleListOrders)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyOrders",
		Method:      http.MethodGet,
		Path:        "/api/v1/orders/my-orders",
		Summary:     "List my orders",
		Description: "Returns the caller's loans, newest first",
		Tags:        []string{"Orders"},
		Security:    bearerSecurity,
	}, s.handleListMyOrders)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteOrder",
		Method:      http.MethodDelete,
		Path:        "/api/v1/orders/{orderId}",
		Summary:     "Delete order",
		Description: "Removes a loan record in any state (admin only)",
		Tags:        []string{"Orders"},
		Security:    bearerSecurity,
	}, s.handleDeleteOrder)
}

// === DTOs ===

// OrderResponse contains a single loan.
type OrderResponse struct {
	ID         string            `json:"id" doc:"Order ID"`
	Label      string            `json:"label" doc:"Human-readable order label"`
	Status     domain.LoanStatus `json:"status" doc:"active, returned or cancelled"`
	BorrowedAt time.Time         `json:"borrowed_at" doc:"When the book was borrowed"`
	ReturnedAt *time.Time        `json:"returned_at,omitempty" doc:"When the book was returned"`
	UserID     string            `json:"user_id" doc:"Borrower ID"`
	BookID     string            `json:"book_id" doc:"Book ID"`
}

// OrderOutput wraps an order response for Huma.
type OrderOutput struct {
	Body OrderResponse
}

// ListOrdersResponse contains loans with their borrower and book resolved.
type ListOrdersResponse struct {
	Orders []*service.LoanView `json:"orders" doc:"Loans, newest first"`
}

// ListOrdersOutput wraps the list orders response for Huma.
type ListOrdersOutput struct {
	Body ListOrdersResponse
}

// BorrowBookInput contains parameters for borrowing a book.
type BorrowBookInput struct {
	Authorization string `header:"Authorization"`
	BookID        string `path:"bookId" doc:"Book ID"`
}

// OrderIDInput addresses a single order.
type OrderIDInput struct {
	Authorization string `header:"Authorization"`
	OrderID       string `path:"orderId" doc:"Order ID"`
}

// ListOrdersInput contains parameters for listing orders.
type ListOrdersInput struct {
	Authorization string `header:"Authorization"`
}

// === Handlers ===

func (s *Server) handleBorrowBook(ctx context.Context, input *BorrowBookInput) (*OrderOutput, error) {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	loan, err := s.services.Lending.Borrow(ctx, user.ID, input.BookID)
	if err != nil {
		return nil, err
	}
	return &OrderOutput{Body: mapOrderResponse(loan)}, nil
}

func (s *Server) handleReturnBook(ctx context.Context, input *OrderIDInput) (*OrderOutput, error) {
	if err := s.authorizeOrder(ctx, input); err != nil {
		return nil, err
	}

	loan, err := s.services.Lending.ReturnBook(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	return &OrderOutput{Body: mapOrderResponse(loan)}, nil
}

func (s *Server) handleCancelOrder(ctx context.Context, input *OrderIDInput) (*OrderOutput, error) {
	if err := s.authorizeOrder(ctx, input); err != nil {
		return nil, err
	}

	loan, err := s.services.Lending.CancelOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	return &OrderOutput{Body: mapOrderResponse(loan)}, nil
}

func (s *Server) handleListOrders(ctx context.Context, input *ListOrdersInput) (*ListOrdersOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	views, err := s.services.Loans.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ListOrdersOutput{Body: ListOrdersResponse{Orders: views}}, nil
}

func (s *Server) handleListMyOrders(ctx context.Context, input *ListOrdersInput) (*ListOrdersOutput, error) {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	views, err := s.services.Loans.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ListOrdersOutput{Body: ListOrdersResponse{Orders: views}}, nil
}

func (s *Server) handleDeleteOrder(ctx context.Context, input *OrderIDInput) (*MessageOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Lending.DeleteOrder(ctx, input.OrderID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Order deleted"}}, nil
}

// authorizeOrder lets the borrower or an admin act on an order.
func (s *Server) authorizeOrder(ctx context.Context, input *OrderIDInput) error {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return err
	}

	loan, err := s.services.Lending.CheckLoanExists(ctx, input.OrderID)
	if err != nil {
		return err
	}

	if loan.UserID != user.ID && !user.IsAdmin() {
		return domainerrors.Forbidden("You can only manage your own orders")
	}
	return nil
}

func mapOrderResponse(l *domain.Loan) OrderResponse {
	return OrderResponse{
		ID:         l.ID,
		Label:      l.Label,
		Status:     l.Status,
		BorrowedAt: l.BorrowedAt,
		ReturnedAt: l.ReturnedAt,
		UserID:     l.UserID,
		BookID:     l.BookID,
	}
}
