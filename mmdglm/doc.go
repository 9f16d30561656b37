// Package mmdglm trains point-process GLMs by gradient descent, either on the
// likelihood alone or by matching spike-train statistics through the maximum
// mean discrepancy between observed and simulated rate paths.
//
// A Model wraps a glm.GLM.  The optimizer owns the parameter vector, and
// after every step the updated vector is applied to the model, which then
// simulates the next batch with the new parameters.
package mmdglm
