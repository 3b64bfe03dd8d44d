package echoapi

import (
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shule/backend/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// validatable is implemented by the input types of the core packages.
type validatable interface {
	Validate(validate *validator.Validate) error
}

type binder struct {
	validate   *validator.Validate
	translator ut.Translator
}

// bind decodes the request body into data then validates it.
func (b binder) bind(ctx echo.Context, data validatable) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return b.check(data)
}

func (b binder) check(data validatable) error {
	return core.TranslateValidationErrors(data.Validate(b.validate), b.translator)
}

// Query params

func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be a boolean")
	}
	return &b, nil
}

func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewFieldError(name, "must be an integer")
	}
	return n, nil
}

func queryDate(ctx echo.Context, name string) (*core.Date, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be a date formatted as YYYY-MM-DD")
	}
	return &d, nil
}

// queryList accepts both repeated params and comma separated values.
func queryList(ctx echo.Context, name string) []string {
	var res []string
	for _, val := range ctx.QueryParams()[name] {
		for _, v := range strings.Split(val, ",") {
			if v = strings.TrimSpace(v); v != "" {
				res = append(res, v)
			}
		}
	}
	return res
}

func isActiveOnly(ctx echo.Context) (bool, error) {
	active, err := queryBool(ctx, "active")
	return active != nil && *active, err
}
