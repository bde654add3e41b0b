package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Mount registers the REST API on r. Routes other than register, login,
// logout and user lookup sit behind auth.
func Mount(r *mux.Router, users *UserHandler, contacts *ContactHandler, messages *MessageHandler, auth func(http.Handler) http.Handler) {
	api := r.PathPrefix("/api").Subrouter()

	// Public
	api.HandleFunc("/users", users.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", users.Get).Methods(http.MethodGet)
	api.HandleFunc("/login", users.Login).Methods(http.MethodPost)
	api.HandleFunc("/logout", users.Logout).Methods(http.MethodPost)

	// Protected
	protected := api.NewRoute().Subrouter()
	protected.Use(auth)

	protected.HandleFunc("/contacts", contacts.List).Methods(http.MethodGet)
	protected.HandleFunc("/contacts", contacts.Add).Methods(http.MethodPost)

	protected.HandleFunc("/messages", messages.Send).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{contactId}", messages.History).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{id}/read", messages.MarkRead).Methods(http.MethodPatch)
}
