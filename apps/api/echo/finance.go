package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/finance"
	"github.com/shule/backend/core/user"
)

type financeApi struct {
	svc *finance.Service
	bnd binder
}

func registerFinanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *finance.Service, bnd binder) {
	api := financeApi{svc: svc, bnd: bnd}
	accountants := allowRoles(user.RoleAccountant)

	fg := g.Group("/fee-structures", jwt, accountants)
	fg.GET("", api.queryFeeStructures)
	fg.POST("", api.createFeeStructure)
	fg.GET("/:id", api.retrieveFeeStructure)
	fg.PUT("/:id", api.updateFeeStructure)
	fg.DELETE("/:id", api.destroyFeeStructure)

	ig := g.Group("/invoices", jwt, accountants)
	ig.GET("", api.queryInvoices)
	ig.POST("", api.createInvoice)
	ig.GET("/outstanding", api.outstandingInvoices)
	ig.GET("/summary", api.invoiceSummary)
	ig.POST("/mark-overdue", api.markOverdue)
	ig.GET("/:id", api.retrieveInvoice)
	ig.PUT("/:id", api.updateInvoice)
	ig.POST("/:id/mark-paid", api.markInvoicePaid)
	ig.POST("/:id/send", api.sendInvoice)
	ig.POST("/:id/cancel", api.cancelInvoice)
	ig.POST("/:id/recompute", api.recomputeInvoice)
	ig.POST("/:id/items", api.addInvoiceItem)
	ig.DELETE("/:id/items/:item_id", api.removeInvoiceItem)

	pg := g.Group("/payments", jwt, accountants)
	pg.GET("", api.queryPayments)
	pg.POST("", api.recordPayment)
	pg.GET("/summary", api.paymentSummary)
	pg.GET("/student/:student_id", api.studentPayments)
	pg.GET("/:id", api.retrievePayment)
	pg.PATCH("/:id/status", api.updatePaymentStatus)

	eg := g.Group("/expenses", jwt, accountants)
	eg.GET("", api.queryExpenses)
	eg.POST("", api.createExpense)
	eg.GET("/summary", api.expenseSummary)
	eg.GET("/:id", api.retrieveExpense)
	eg.PUT("/:id", api.updateExpense)
	eg.DELETE("/:id", api.destroyExpense)

	bg := g.Group("/budgets", jwt, accountants)
	bg.GET("", api.queryBudgets)
	bg.POST("", api.createBudget)
	bg.GET("/summary", api.budgetSummary)
	bg.GET("/:id", api.retrieveBudget)
	bg.PUT("/:id", api.updateBudget)
}

// Fee structures

func (api *financeApi) queryFeeStructures(ctx echo.Context) error {
	activeOnly, err := isActiveOnly(ctx)
	if err != nil {
		return err
	}
	filter := finance.FeeStructureFilter{
		ClassID:        ctx.QueryParam("class_id"),
		AcademicYearID: ctx.QueryParam("academic_year_id"),
		Frequency:      finance.Frequency(ctx.QueryParam("frequency")),
		ActiveOnly:     activeOnly,
	}
	fss, err := api.svc.ListFeeStructures(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fss)
}

func (api *financeApi) createFeeStructure(ctx echo.Context) error {
	var data finance.NewFeeStructure
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *financeApi) retrieveFeeStructure(ctx echo.Context) error {
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *financeApi) updateFeeStructure(ctx echo.Context) error {
	var data finance.NewFeeStructure
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	fs, err := api.svc.UpdateFeeStructure(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *financeApi) destroyFeeStructure(ctx echo.Context) error {
	if err := api.svc.DeleteFeeStructure(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Invoices

func (api *financeApi) invoiceFilter(ctx echo.Context) finance.InvoiceFilter {
	filter := finance.InvoiceFilter{
		StudentID:      ctx.QueryParam("student_id"),
		AcademicYearID: ctx.QueryParam("academic_year_id"),
		TermID:         ctx.QueryParam("term_id"),
	}
	for _, s := range queryList(ctx, "status") {
		filter.Statuses = append(filter.Statuses, finance.InvoiceStatus(s))
	}
	return filter
}

func (api *financeApi) queryInvoices(ctx echo.Context) error {
	invoices, err := api.svc.ListInvoices(ctx.Request().Context(), api.invoiceFilter(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *financeApi) createInvoice(ctx echo.Context) error {
	var data finance.NewInvoice
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	inv, err := api.svc.CreateInvoice(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *financeApi) outstandingInvoices(ctx echo.Context) error {
	invoices, err := api.svc.OutstandingInvoices(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *financeApi) invoiceSummary(ctx echo.Context) error {
	summary, err := api.svc.InvoiceSummary(ctx.Request().Context(), api.invoiceFilter(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

type markOverdueResponse struct {
	Count    int               `json:"count"`
	Invoices []finance.Invoice `json:"invoices"`
}

func (api *financeApi) markOverdue(ctx echo.Context) error {
	today := core.DateOf(nowFunc())
	invoices, err := api.svc.MarkOverdueInvoices(ctx.Request().Context(), today)
	if err != nil {
		return err
	}
	if invoices == nil {
		invoices = []finance.Invoice{}
	}
	return ctx.JSON(http.StatusOK, markOverdueResponse{Count: len(invoices), Invoices: invoices})
}

func (api *financeApi) retrieveInvoice(ctx echo.Context) error {
	inv, err := api.svc.GetInvoice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *financeApi) updateInvoice(ctx echo.Context) error {
	var data finance.UpdateInvoice
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	inv, err := api.svc.UpdateInvoice(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *financeApi) markInvoicePaid(ctx echo.Context) error {
	inv, err := api.svc.MarkInvoicePaid(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

type sendInvoiceRequest struct {
	To []string `json:"to"`
}

func (api *financeApi) sendInvoice(ctx echo.Context) error {
	var data sendInvoiceRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	to := make([]mail.Address, 0, len(data.To))
	for _, raw := range data.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return core.NewFieldError("to", "invalid email address: "+raw)
		}
		to = append(to, *addr)
	}
	inv, err := api.svc.SendInvoice(ctx.Request().Context(), ctx.Param("id"), to)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *financeApi) cancelInvoice(ctx echo.Context) error {
	inv, err := api.svc.CancelInvoice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *financeApi) recomputeInvoice(ctx echo.Context) error {
	inv, err := api.svc.RecomputeInvoice(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *financeApi) addInvoiceItem(ctx echo.Context) error {
	var data finance.NewInvoiceItem
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	inv, err := api.svc.AddInvoiceItem(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *financeApi) removeInvoiceItem(ctx echo.Context) error {
	inv, err := api.svc.RemoveInvoiceItem(ctx.Request().Context(), ctx.Param("id"), ctx.Param("item_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

// Payments

func (api *financeApi) queryPayments(ctx echo.Context) error {
	filter := finance.PaymentFilter{
		StudentID:      ctx.QueryParam("student_id"),
		FeeStructureID: ctx.QueryParam("fee_structure_id"),
		InvoiceID:      ctx.QueryParam("invoice_id"),
		TermID:         ctx.QueryParam("term_id"),
		Method:         finance.PaymentMethod(ctx.QueryParam("payment_method")),
		Status:         finance.PaymentStatus(ctx.QueryParam("status")),
	}
	payments, err := api.svc.ListPayments(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *financeApi) recordPayment(ctx echo.Context) error {
	var data finance.NewPayment
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.RecordPayment(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *financeApi) paymentSummary(ctx echo.Context) error {
	summary, err := api.svc.PaymentSummary(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *financeApi) studentPayments(ctx echo.Context) error {
	payments, err := api.svc.StudentPayments(ctx.Request().Context(), ctx.Param("student_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *financeApi) retrievePayment(ctx echo.Context) error {
	p, err := api.svc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *financeApi) updatePaymentStatus(ctx echo.Context) error {
	var data finance.PaymentStatusUpdate
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.UpdatePaymentStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

// Expenses

func (api *financeApi) expenseFilter(ctx echo.Context) (finance.ExpenseFilter, error) {
	from, err := queryDate(ctx, "from")
	if err != nil {
		return finance.ExpenseFilter{}, err
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		return finance.ExpenseFilter{}, err
	}
	return finance.ExpenseFilter{
		Category: finance.ExpenseCategory(ctx.QueryParam("category")),
		From:     from,
		To:       to,
	}, nil
}

func (api *financeApi) queryExpenses(ctx echo.Context) error {
	filter, err := api.expenseFilter(ctx)
	if err != nil {
		return err
	}
	expenses, err := api.svc.ListExpenses(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, expenses)
}

func (api *financeApi) createExpense(ctx echo.Context) error {
	var data finance.NewExpense
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.CreateExpense(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *financeApi) expenseSummary(ctx echo.Context) error {
	filter, err := api.expenseFilter(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.ExpenseSummary(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *financeApi) retrieveExpense(ctx echo.Context) error {
	e, err := api.svc.GetExpense(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *financeApi) updateExpense(ctx echo.Context) error {
	var data finance.NewExpense
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.UpdateExpense(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *financeApi) destroyExpense(ctx echo.Context) error {
	if err := api.svc.DeleteExpense(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Budgets

func (api *financeApi) queryBudgets(ctx echo.Context) error {
	budgets, err := api.svc.ListBudgets(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, budgets)
}

func (api *financeApi) createBudget(ctx echo.Context) error {
	var data finance.NewBudget
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	b, err := api.svc.CreateBudget(ctx.Request().Context(), data, callerID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *financeApi) budgetSummary(ctx echo.Context) error {
	summary, err := api.svc.BudgetSummary(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *financeApi) retrieveBudget(ctx echo.Context) error {
	b, err := api.svc.GetBudget(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *financeApi) updateBudget(ctx echo.Context) error {
	var data finance.NewBudget
	if err := api.bnd.bind(ctx, &data); err != nil {
		return err
	}
	b, err := api.svc.UpdateBudget(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}
