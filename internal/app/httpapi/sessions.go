package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/middleware"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	userKey
)

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey).(*session.Session)
	return sess
}

// currentUser returns the signed-in user, if any.
func currentUser(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}

// sessions loads the visitor's session and user, and saves the session
// before the first byte of the response when it changed.
func (h *handler) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := h.loadSession(r)
		ctx = context.WithValue(ctx, sessionKey, sess)

		if sess.Authenticated() {
			u, err := h.app.Accounts.Get(ctx, sess.UserID)
			switch {
			case err == nil:
				ctx = context.WithValue(ctx, userKey, u)
				ctx = middleware.WithIdentity(ctx, middleware.Identity{UserID: u.ID, Role: string(u.Role)})
				if err := h.app.Accounts.Touch(ctx, u.ID); err != nil {
					h.log.WithError(err).WithField("user_id", u.ID).Warn("update last activity")
				}
			case errors.Is(err, storage.ErrNotFound):
				sess.SetUser(0)
			default:
				h.log.WithError(err).WithField("user_id", sess.UserID).Warn("load session user")
			}
		}

		sw := &sessionWriter{ResponseWriter: w, h: h, r: r.WithContext(ctx), sess: sess}
		next.ServeHTTP(sw, sw.r)
		sw.commit()
	})
}

func (h *handler) loadSession(r *http.Request) *session.Session {
	if id, ok := h.codec.FromRequest(r); ok {
		sess, err := h.app.Sessions.Load(r.Context(), id)
		if err == nil {
			return sess
		}
		if !errors.Is(err, session.ErrNotFound) {
			h.log.WithError(err).Warn("load session")
		}
	}
	sess := session.New()
	// Fresh sessions are only persisted once something is stored in them.
	sess.MarkClean()
	return sess
}

// sessionWriter persists a dirty session and sets its cookie before headers go out.
type sessionWriter struct {
	http.ResponseWriter
	h         *handler
	r         *http.Request
	sess      *session.Session
	committed bool
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if !w.sess.Dirty() {
		return
	}
	if err := w.h.app.Sessions.Save(w.r.Context(), w.sess); err != nil {
		w.h.log.WithError(err).Error("save session")
		return
	}
	cookie, err := w.h.codec.Cookie(w.sess.ID)
	if err != nil {
		w.h.log.WithError(err).Error("sign session cookie")
		return
	}
	http.SetCookie(w.ResponseWriter, cookie)
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// signIn binds u to a fresh session id, keeping the cart.
func (h *handler) signIn(r *http.Request, u user.User) {
	sess := sessionFrom(r.Context())
	old := sess.Rotate()
	if err := h.app.Sessions.Delete(r.Context(), old); err != nil {
		h.log.WithError(err).Warn("delete rotated session")
	}
	sess.SetUser(u.ID)
}
