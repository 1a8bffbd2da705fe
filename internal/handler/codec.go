package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

const maxBodyBytes = 1 << 20

// malformedError reports a request body that could not be decoded.
type malformedError struct {
	err error
}

func (e *malformedError) Error() string { return "malformed request body: " + e.err.Error() }

func (e *malformedError) Unwrap() error { return e.err }

type decoder interface {
	Decode(d *jx.Decoder) error
}

func readJSON(w http.ResponseWriter, r *http.Request, v decoder) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &malformedError{err: err}
	}
	if err := v.Decode(jx.DecodeBytes(body)); err != nil {
		return &malformedError{err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.New("money must be a string or number")
	}
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("categoryId", func(e *jx.Encoder) { e.Str(p.CategoryID) })
		if p.CategoryName != "" {
			e.Field("categoryName", func(e *jx.Encoder) { e.Str(p.CategoryName) })
		}
		if p.ImageURL != "" {
			e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		}
		e.Field("featured", func(e *jx.Encoder) { e.Bool(p.Featured) })
		if p.OnSale() {
			e.Field("discountPercent", func(e *jx.Encoder) { e.Int(p.DiscountPercent) })
			e.Field("salePrice", func(e *jx.Encoder) { encodeMoney(e, p.SalePrice()) })
		}
	})
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range products {
					encodeProduct(e, p)
				}
			})
		})
	})
}

func encodeSale(e *jx.Encoder, s *product.Sale) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range s.Products {
					encodeProduct(e, p)
				}
			})
		})
		e.Field("categories", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range s.Categories {
					encodeCategory(e, c)
				}
			})
		})
	})
}

func encodeCategory(e *jx.Encoder, c product.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("productCount", func(e *jx.Encoder) { e.Int(c.ProductCount) })
	})
}

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, b.Subtotal) })
	e.Field("tax", func(e *jx.Encoder) { encodeMoney(e, b.Tax) })
	e.Field("shipping", func(e *jx.Encoder) { encodeMoney(e, b.Shipping) })
	e.Field("total", func(e *jx.Encoder) { encodeMoney(e, b.Total) })
}

func encodeCart(e *jx.Encoder, v *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range v.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { encodeProduct(e, l.Product) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("amount", func(e *jx.Encoder) { encodeMoney(e, l.Amount) })
					})
				}
			})
		})
		encodeBreakdown(e, v.Summary)
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		if o.Username != "" {
			e.Field("username", func(e *jx.Encoder) { e.Str(o.Username) })
			e.Field("email", func(e *jx.Encoder) { e.Str(o.Email) })
		}
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		encodeBreakdown(e, pricing.Breakdown{
			Subtotal: o.Subtotal,
			Tax:      o.Tax,
			Shipping: o.Shipping,
			Total:    o.Total,
		})
		e.Field("shippingAddress", func(e *jx.Encoder) { e.Str(o.ShippingAddress) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
		if o.Items != nil {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range o.Items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
							e.Field("productName", func(e *jx.Encoder) { e.Str(it.ProductName) })
							e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
							e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
							e.Field("amount", func(e *jx.Encoder) { encodeMoney(e, it.Amount()) })
						})
					}
				})
			})
		} else {
			e.Field("itemCount", func(e *jx.Encoder) { e.Int(o.ItemCount) })
		}
	})
}

func encodeOrderPage(e *jx.Encoder, p *order.Page) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range p.Orders {
					encodeOrder(e, &p.Orders[i])
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Int(p.Total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("perPage", func(e *jx.Encoder) { e.Int(p.PerPage) })
	})
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(u.ID) })
		e.Field("username", func(e *jx.Encoder) { e.Str(u.Username) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
		e.Field("address", func(e *jx.Encoder) { e.Str(u.Address) })
		e.Field("isAdmin", func(e *jx.Encoder) { e.Bool(u.IsAdmin) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, u.CreatedAt) })
	})
}

type loginRequest struct {
	Login    string
	Password string
}

func (req *loginRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "login":
			req.Login, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type registerRequest struct {
	user.Registration
}

func (req *registerRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "username":
			req.Username, err = d.Str()
		case "email":
			req.Email, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		case "confirmPassword":
			req.ConfirmPassword, err = d.Str()
		case "address":
			req.Address, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type cartItemRequest struct {
	ProductID string
	Quantity  int
}

func (req *cartItemRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "productId":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

type cartUpdateRequest struct {
	Quantities map[string]int
}

func (req *cartUpdateRequest) Decode(d *jx.Decoder) error {
	req.Quantities = make(map[string]int)
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		if string(k) != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var item cartItemRequest
			if err := item.Decode(d); err != nil {
				return err
			}
			req.Quantities[item.ProductID] = item.Quantity
			return nil
		})
	})
}

type checkoutRequest struct {
	ShippingAddress string
}

func (req *checkoutRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "shippingAddress":
			req.ShippingAddress, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type statusRequest struct {
	Status string
}

func (req *statusRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "status":
			req.Status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type productRequest struct {
	product.Input
}

func (req *productRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "name":
			req.Name, err = d.Str()
		case "description":
			req.Description, err = d.Str()
		case "price":
			req.Price, err = decodeMoney(d)
		case "stock":
			req.Stock, err = d.Int()
		case "categoryId":
			req.CategoryID, err = d.Str()
		case "imageUrl":
			req.ImageURL, err = d.Str()
		case "featured":
			req.Featured, err = d.Bool()
		case "discountPercent":
			req.DiscountPercent, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

type categoryRequest struct {
	Name        string
	Description string
}

func (req *categoryRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) (err error) {
		switch string(k) {
		case "name":
			req.Name, err = d.Str()
		case "description":
			req.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}
